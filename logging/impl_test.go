package logging

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestSubloggerSharesAppenders(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("camera").Sublogger("front")
	test.That(t, sub.Name(), test.ShouldEqual, "camera.front")

	sub.Infow("frame", "width", 320)
	entries := logs.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "camera.front")
	test.That(t, entries[0].ContextMap()["width"], test.ShouldEqual, int64(320))
	test.That(t, strings.HasSuffix(entries[0].Caller.File, "impl_test.go"), test.ShouldBeTrue)
}

func TestLevelAndDebugMode(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Debugw("hidden")
	logger.Infow("hidden")
	logger.CDebugw(context.Background(), "hidden")
	test.That(t, logs.Len(), test.ShouldEqual, 0)

	logger.CDebugw(EnableDebugMode(context.Background(), ""), "shown")
	logger.Warn("warned")
	logger.Error("failed")
	messages := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	test.That(t, messages, test.ShouldResemble, []string{"shown", "warned", "failed"})
	test.That(t, logs.All()[0].Level, test.ShouldEqual, zapcore.DebugLevel)
}

func TestUnpairedKey(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Errorw("odd fields", "topic", "/cam", "dangling")
	fields := logs.All()[0].ContextMap()
	test.That(t, fields["topic"], test.ShouldEqual, "/cam")
	test.That(t, fields["dangling"], test.ShouldNotBeNil)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}
