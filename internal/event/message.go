package event

// StoredMessage is one immutable content row in a channel feed. Edits and
// deletes are new rows referencing the target id, never in-place mutation.
type StoredMessage struct {
	ID        string
	ChannelID string
	Sender    string // transport identity of the author
	Text      string
	EditOf    string // id of the message this row edits, if any
	DeleteOf  string // id of the message this row deletes, if any
	SentAt    int64  // creation time, unix milliseconds
	Raw       []byte // opaque original payload
}

// IsControl reports whether the row is an edit or delete tombstone rather
// than a displayable message.
func (m StoredMessage) IsControl() bool {
	return m.EditOf != "" || m.DeleteOf != ""
}

// ParentEdge links a message to one of its parents. Edges are append-only
// and carry no existence constraint on ParentID: a reply may be stored
// before its parent arrives.
type ParentEdge struct {
	MessageID string
	ParentID  string
}

// VisibleMessage is a derived row: a currently-visible message with
// sender-validated edits resolved. Never persisted.
type VisibleMessage struct {
	ID        string
	ChannelID string
	Sender    string
	Text      string
	SentAt    int64
	Edited    bool
	Parents   []string
}

// ThreadMessage is a message appearing in an assembled thread context.
// SiblingParent marks a parent of a descendant that is not itself an
// ancestor of the focal message; such entries are context only and were
// not expanded during traversal.
type ThreadMessage struct {
	StoredMessage
	SiblingParent bool
}

// ThreadContext is the bounded ancestor/descendant view around one
// message. Derived on demand, never persisted.
type ThreadContext struct {
	Ancestors   []StoredMessage
	Message     StoredMessage
	Descendants []ThreadMessage

	// ParentMap records, for every message present in the thread, which
	// of its parents are also present. Presentation uses it to tell a
	// direct parent of the focus from a plain ancestor or sibling parent.
	ParentMap map[string][]string
}
