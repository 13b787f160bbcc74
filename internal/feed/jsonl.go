package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// jsonl line shape. The payload is kept as raw JSON so undecodable
// payloads survive the trip into the skip path instead of failing the
// whole file.
type jsonlRecord struct {
	Sender  string          `json:"sender"`
	GroupID string          `json:"groupId"`
	SentAt  int64           `json:"sentAt"`
	Payload json.RawMessage `json:"payload"`
}

// File is a Source reading one JSON record per line from a feed dump.
// Line order is delivery order. Blank lines are ignored; a line that is
// not valid JSON fails the read, since a corrupt dump is a caller-side
// error rather than feed noise.
type File struct {
	path string
}

// NewFile creates a File source for the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

// ReadAll implements Source.
func (f *File) ReadAll(ctx context.Context) ([]Record, error) {
	return f.read(ctx, "")
}

// ReadGroup implements Source.
func (f *File) ReadGroup(ctx context.Context, groupID string) ([]Record, error) {
	return f.read(ctx, groupID)
}

func (f *File) read(ctx context.Context, groupID string) ([]Record, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer fh.Close()

	var out []Record
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var jr jsonlRecord
		if err := json.Unmarshal(raw, &jr); err != nil {
			return nil, fmt.Errorf("feed %s:%d: %w", f.path, line, err)
		}
		if groupID != "" && jr.GroupID != groupID {
			continue
		}
		out = append(out, Record{
			Sender:  jr.Sender,
			GroupID: jr.GroupID,
			SentAt:  jr.SentAt,
			Payload: append([]byte(nil), jr.Payload...),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read feed %s: %w", f.path, err)
	}
	return out, nil
}
