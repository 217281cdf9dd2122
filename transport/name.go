package transport

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Sep separates the sections of a topic name.
const Sep = "/"

// ErrInvalidTopic is returned for topic names that cannot be advertised or subscribed to.
var ErrInvalidTopic = errors.New("invalid topic name")

// ValidTopic reports whether name may be used as a topic. Names must be non-empty and must not
// contain whitespace, "//", "@", "~" or ":=".
func ValidTopic(name string) bool {
	if name == "" || name == Sep {
		return false
	}
	if strings.Contains(name, "//") || strings.ContainsAny(name, "@~") || strings.Contains(name, ":=") {
		return false
	}
	return strings.IndexFunc(name, unicode.IsSpace) == -1
}

// ValidNamespace reports whether ns may be used as a node namespace. The empty namespace is
// valid.
func ValidNamespace(ns string) bool {
	return ns == "" || ValidTopic(ns)
}

// FullyQualifiedName prefixes a topic with the namespace and a leading separator, and strips
// a trailing separator. Names that are already absolute ignore the namespace.
func FullyQualifiedName(namespace, name string) (string, error) {
	if !ValidTopic(name) {
		return "", errors.Wrapf(ErrInvalidTopic, "%q", name)
	}
	if !ValidNamespace(namespace) {
		return "", errors.Wrapf(ErrInvalidTopic, "namespace %q", namespace)
	}

	resolved := name
	if !strings.HasPrefix(name, Sep) {
		ns := strings.Trim(namespace, Sep)
		if ns == "" {
			resolved = Sep + name
		} else {
			resolved = Sep + ns + Sep + name
		}
	}
	return strings.TrimSuffix(resolved, Sep), nil
}
