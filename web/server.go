// Package web serves the latest frames of watched image topics over HTTP, and pushes a
// notification to websocket clients whenever a new frame arrives.
package web

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/msgs"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/rimage"
	"github.com/robosim/sensors/transport"
)

const (
	clientQueueSize = 16
	writeTimeout    = 5 * time.Second
)

// FrameInfo describes the latest frame seen on a topic.
type FrameInfo struct {
	Topic   string `json:"topic"`
	FrameID string `json:"frame_id"`
	Width   uint32 `json:"width"`
	Height  uint32 `json:"height"`
	Format  string `json:"format"`
	// SimTime is the frame stamp in milliseconds of simulation time.
	SimTime int64 `json:"sim_time_ms"`
}

// Server keeps the latest frame per watched topic.
type Server struct {
	bus    *transport.Bus
	logger logging.Logger
	node   *transport.Node

	upgrader websocket.Upgrader

	mu       sync.Mutex
	frames   map[string]*msgs.Image
	subs     map[string]*transport.Subscription
	clients  map[uuid.UUID]*client
	colorMap rimage.ColorMap
	closed   bool
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewServer returns a server reading frames from bus.
func NewServer(bus *transport.Bus, logger logging.Logger) (*Server, error) {
	if bus == nil {
		bus = transport.DefaultBus()
	}
	node, err := bus.NewNode("")
	if err != nil {
		return nil, err
	}
	return &Server{
		bus:      bus,
		logger:   logger,
		node:     node,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		frames:   map[string]*msgs.Image{},
		subs:     map[string]*transport.Subscription{},
		clients:  map[uuid.UUID]*client{},
		colorMap: rimage.ColorMapGrayscale,
	}, nil
}

// SetColorMap sets how depth frames are drawn.
func (s *Server) SetColorMap(cm rimage.ColorMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colorMap = cm
}

// Watch subscribes to an image topic. Watching a topic twice is a no-op.
func (s *Server) Watch(topic string) error {
	name, err := transport.FullyQualifiedName("", topic)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("server is closed")
	}
	if _, ok := s.subs[name]; ok {
		return nil
	}
	sub, err := transport.Subscribe(s.node, name, func(img *msgs.Image) {
		s.onFrame(name, img)
	})
	if err != nil {
		return errors.Wrapf(err, "watching %s", name)
	}
	s.subs[name] = sub
	s.logger.Debugw("watching topic", "topic", name)
	return nil
}

// Topics returns the watched topics, sorted.
func (s *Server) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for name := range s.subs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Latest returns the newest frame seen on topic.
func (s *Server) Latest(topic string) (*msgs.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.frames[topic]
	return img, ok
}

func (s *Server) onFrame(topic string, img *msgs.Image) {
	info := frameInfo(topic, img)
	note, err := json.Marshal(info)
	if err != nil {
		s.logger.Warnw("cannot encode frame notification", "topic", topic, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[topic] = img
	for id, c := range s.clients {
		select {
		case c.send <- note:
		default:
			s.logger.Debugw("websocket client too slow, dropping notification", "client", id, "topic", topic)
		}
	}
}

func frameInfo(topic string, img *msgs.Image) FrameInfo {
	return FrameInfo{
		Topic:   topic,
		FrameID: img.Header.FrameID(),
		Width:   img.Width,
		Height:  img.Height,
		Format:  img.PixelFormatType.String(),
		SimTime: msgs.StampDuration(img.Header.Stamp).Milliseconds(),
	}
}

// Handler returns the HTTP routes, open to any origin.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/topics"), s.handleTopics)
	mux.HandleFunc(pat.Get("/frame/:name"), s.handleFrame)
	mux.HandleFunc(pat.Get("/ws"), s.handleWebsocket)
	return cors.AllowAll().Handler(mux)
}

type topicsResponse struct {
	Watched []FrameInfo           `json:"watched"`
	Bus     []transport.TopicInfo `json:"bus"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	resp := topicsResponse{Watched: []FrameInfo{}, Bus: s.bus.Topics()}
	for _, topic := range s.Topics() {
		info := FrameInfo{Topic: topic}
		if img, ok := s.Latest(topic); ok {
			info = frameInfo(topic, img)
		}
		resp.Watched = append(resp.Watched, info)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.CDebugw(r.Context(), "cannot write topics response", "error", err)
	}
}

// handleFrame serves /frame/:name as PNG. The topic is /name unless the topic query
// parameter names one, which allows nested topics.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	topic := query.Get("topic")
	if topic == "" {
		topic = "/" + strings.TrimPrefix(pat.Param(r, "name"), "/")
	}
	width := 0
	if v := query.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "width must be a non-negative integer", http.StatusBadRequest)
			return
		}
		width = n
	}
	cm := s.currentColorMap()
	if v := query.Get("colormap"); v != "" {
		parsed, err := rimage.ParseColorMap(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cm = parsed
	}

	msg, ok := s.Latest(topic)
	if !ok {
		http.Error(w, "no frame on "+topic, http.StatusNotFound)
		return
	}
	img, err := decodeFrame(msg, cm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := rimage.EncodeImage(w, rimage.Resize(img, width), rimage.EncodingPNG); err != nil {
		s.logger.CDebugw(r.Context(), "cannot write frame", "topic", topic, "error", err)
	}
}

func (s *Server) currentColorMap() rimage.ColorMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorMap
}

func decodeFrame(msg *msgs.Image, cm rimage.ColorMap) (image.Image, error) {
	if msg.PixelFormatType == msgs.RFloat32 {
		n := int(msg.Width) * int(msg.Height)
		if len(msg.Data) < n*4 {
			return nil, errors.Errorf("depth frame has %d bytes, want %d", len(msg.Data), n*4)
		}
		return rimage.DepthToImage(rendering.BytesToFloat32(msg.Data[:n*4]), int(msg.Width), int(msg.Height), cm)
	}
	return rimage.FromMessage(msg)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.CDebugw(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, clientQueueSize)}
	if hello, err := json.Marshal(map[string]string{"client_id": c.id.String()}); err == nil {
		c.send <- hello
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		goutils.UncheckedError(conn.Close())
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Infow("websocket client connected", "client", c.id)

	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(done)
		s.writeLoop(c)
	})
	// reads only detect the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.dropClient(c)
	<-done
	goutils.UncheckedError(conn.Close())
	s.logger.Infow("websocket client disconnected", "client", c.id)
}

func (s *Server) writeLoop(c *client) {
	for note := range c.send {
		goutils.UncheckedError(c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)))
		if err := c.conn.WriteMessage(websocket.TextMessage, note); err != nil {
			s.logger.Debugw("websocket write failed", "client", c.id, "error", err)
			s.dropClient(c)
			goutils.UncheckedError(c.conn.Close())
			for range c.send {
			}
			return
		}
	}
}

func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		errCh <- srv.ListenAndServe()
	})
	s.logger.Infow("serving frames", "address", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops watching and disconnects every websocket client.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = map[uuid.UUID]*client{}
	subs := s.subs
	s.subs = map[string]*transport.Subscription{}
	s.mu.Unlock()

	var errs error
	for _, c := range clients {
		c.close()
		goutils.UncheckedError(c.conn.Close())
	}
	for _, sub := range subs {
		errs = multierr.Append(errs, sub.Unsubscribe())
	}
	return multierr.Combine(errs, s.node.Close())
}
