// Package codec turns raw feed payloads into tagged events and back.
//
// Decoding is two-phase: the JSON payload is validated against an
// embedded CUE schema, then mapped onto the event union. Anything that
// fails either phase is reported as "not decodable by this schema" and
// skipped by the caller; the engines never see it.
package codec

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/palaver/internal/event"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce    sync.Once
	schemaControl cue.Value
	schemaContent cue.Value
	schemaErr     error
)

// loadSchemas compiles the embedded CUE schema once per process.
func loadSchemas() error {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile payload schema: %w", err)
			return
		}
		schemaControl = root.LookupPath(cue.ParsePath("#Control"))
		schemaContent = root.LookupPath(cue.ParsePath("#Content"))
		if err := schemaControl.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Control: %w", err)
			return
		}
		if err := schemaContent.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Content: %w", err)
		}
	})
	return schemaErr
}

// validate unifies a JSON payload with a schema definition and checks the
// result is concrete and consistent.
func validate(schema cue.Value, payload []byte) error {
	expr, err := cuejson.Extract("payload.json", payload)
	if err != nil {
		return err
	}
	val := schema.Context().BuildExpr(expr)
	if err := val.Err(); err != nil {
		return err
	}
	unified := schema.Unify(val)
	return unified.Validate(cue.Concrete(true), cue.Final())
}

// controlEnvelope is the decoded JSON shape shared by all control kinds.
// Field presence per kind is enforced by the CUE schema, not here.
type controlEnvelope struct {
	Type        string           `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Settings    map[string]any   `json:"settings"`
	ChannelID   string           `json:"channelId"`
	Category    string           `json:"category"`
	GroupID     string           `json:"xmtpGroupId"`
	Permissions string           `json:"permissions"`
	DID         string           `json:"did"`
	InboxID     string           `json:"inboxId"`
	Role        string           `json:"role"`
	Text        string           `json:"text"`
	Action      string           `json:"action"`
	Reason      string           `json:"reason"`
	Config      snapshotConfig   `json:"config"`
	Channels    []snapshotChan   `json:"channels"`
	Roles       []snapshotRole   `json:"roles"`
	Bans        []string         `json:"bans"`
	BannedInbox []string         `json:"bannedInboxIds"`
}

type snapshotConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings"`
}

type snapshotChan struct {
	ChannelID   string `json:"channelId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	GroupID     string `json:"xmtpGroupId"`
	Category    string `json:"category"`
	Permissions string `json:"permissions"`
}

type snapshotRole struct {
	DID     string `json:"did"`
	InboxID string `json:"inboxId"`
	Role    string `json:"role"`
}

// DecodeControl decodes one control payload. The second return is false
// when the payload is not decodable by this schema; such payloads are
// skipped, never surfaced as errors.
func DecodeControl(payload []byte) (event.ControlEvent, bool) {
	if loadSchemas() != nil {
		return nil, false
	}
	if err := validate(schemaControl, payload); err != nil {
		return nil, false
	}
	var env controlEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false
	}

	switch env.Type {
	case "community_config":
		return event.CommunityConfig{
			Name:        env.Name,
			Description: env.Description,
			Settings:    env.Settings,
		}, true
	case "channel_created":
		return event.ChannelCreated{
			ChannelID:   env.ChannelID,
			Name:        env.Name,
			Description: env.Description,
			Category:    env.Category,
			GroupID:     env.GroupID,
			Permissions: event.ParsePermissionMode(env.Permissions),
		}, true
	case "channel_updated":
		return event.ChannelUpdated{
			ChannelID:   env.ChannelID,
			Name:        env.Name,
			Description: env.Description,
			Category:    env.Category,
			Permissions: event.ParsePermissionMode(env.Permissions),
		}, true
	case "channel_archived":
		return event.ChannelArchived{ChannelID: env.ChannelID}, true
	case "role_assignment":
		role, ok := event.ParseRole(env.Role)
		if !ok {
			return nil, false
		}
		return event.RoleAssignment{DID: env.DID, InboxID: env.InboxID, Role: role}, true
	case "announcement":
		return event.Announcement{Text: env.Text}, true
	case "moderation":
		return event.ModerationAction{
			Action:  env.Action,
			DID:     env.DID,
			InboxID: env.InboxID,
			Reason:  env.Reason,
		}, true
	case "state_snapshot":
		return decodeSnapshot(env), true
	default:
		return nil, false
	}
}

func decodeSnapshot(env controlEnvelope) event.StateSnapshot {
	snap := event.StateSnapshot{
		Config: event.SnapshotConfig{
			Name:        env.Config.Name,
			Description: env.Config.Description,
			Settings:    env.Config.Settings,
		},
		Bans:           env.Bans,
		BannedInboxIDs: env.BannedInbox,
	}
	for _, ch := range env.Channels {
		snap.Channels = append(snap.Channels, event.SnapshotChannel{
			ChannelID:   ch.ChannelID,
			Name:        ch.Name,
			Description: ch.Description,
			GroupID:     ch.GroupID,
			Category:    ch.Category,
			Permissions: event.ParsePermissionMode(ch.Permissions),
		})
	}
	for _, r := range env.Roles {
		role, ok := event.ParseRole(r.Role)
		if !ok {
			continue
		}
		snap.Roles = append(snap.Roles, event.SnapshotRole{
			DID:     r.DID,
			InboxID: r.InboxID,
			Role:    role,
		})
	}
	return snap
}

// contentEnvelope is the decoded JSON shape shared by content kinds.
type contentEnvelope struct {
	Type     string   `json:"type"`
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	EditOf   string   `json:"editOf"`
	DeleteOf string   `json:"deleteOf"`
	Parents  []string `json:"parents"`
}

// ContentMessage is a decoded content payload before storage. The id may
// be empty, in which case the caller assigns a content-addressed one.
type ContentMessage struct {
	ID       string
	Text     string
	EditOf   string
	DeleteOf string
	Parents  []string
}

// DecodeContent decodes one channel content payload. The second return
// is false when the payload is not decodable by this schema.
func DecodeContent(payload []byte) (ContentMessage, bool) {
	if loadSchemas() != nil {
		return ContentMessage{}, false
	}
	if err := validate(schemaContent, payload); err != nil {
		return ContentMessage{}, false
	}
	var env contentEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ContentMessage{}, false
	}
	switch env.Type {
	case "message", "edit", "delete":
		return ContentMessage{
			ID:       env.ID,
			Text:     env.Text,
			EditOf:   env.EditOf,
			DeleteOf: env.DeleteOf,
			Parents:  env.Parents,
		}, true
	default:
		return ContentMessage{}, false
	}
}
