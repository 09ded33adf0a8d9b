package watch

import "fmt"

// Kind classifies a filesystem event.
type Kind uint8

// Event kinds. Backends that cannot observe a kind never report it.
const (
	KindCreate Kind = iota + 1
	KindModify
	KindRemove
	KindRename
	KindAttrib
	KindOpen
	KindCloseWrite
	KindCloseRead
)

var kindNames = map[Kind]string{
	KindCreate:     "create",
	KindModify:     "modify",
	KindRemove:     "remove",
	KindRename:     "rename",
	KindAttrib:     "attrib",
	KindOpen:       "open",
	KindCloseWrite: "close-write",
	KindCloseRead:  "close-read",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is a single filesystem notification.
type Event struct {
	Path string
	Kind Kind
}

func (e Event) String() string {
	return fmt.Sprintf("%s %q", e.Kind, e.Path)
}

// IsCloseWrite reports whether the event marks a file that was opened for
// writing and has just been closed, i.e. its content is stable.
func (e Event) IsCloseWrite() bool {
	return e.Kind == KindCloseWrite
}
