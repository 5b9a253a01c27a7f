package session

import (
	"encoding/json"
	"errors"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"draw-relay/internal/models"
	"draw-relay/internal/storage"
	"draw-relay/internal/store"
	"draw-relay/internal/ws"
)

// Router binds connections to the shared broadcast group and gates which
// inbound events each role may trigger. Role never restricts what a
// session receives, only what it may do.
type Router struct {
	Hub   *ws.Hub
	Store *store.Store
	Audit *storage.AuditLog

	// OnDeleteAll runs after a successful deleteAll, before the empty
	// snapshot broadcast. Used to drop derived caches (thumbnails).
	OnDeleteAll func()
}

// New creates a router. The audit log may be nil; moderation then goes
// unrecorded but everything else works.
func New(hub *ws.Hub, st *store.Store, audit *storage.AuditLog) *Router {
	return &Router{Hub: hub, Store: st, Audit: audit}
}

// HandleConnection joins an upgraded connection to the broadcast group,
// sends moderator and display roles their snapshot, and runs the read
// loop until disconnect. Blocks for the connection's lifetime.
func (rt *Router) HandleConnection(conn *websocket.Conn, role models.Role) {
	client := &ws.Client{
		Hub:  rt.Hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		ID:   uuid.NewString(),
		Role: role,
	}

	rt.Hub.Register <- client
	go client.WritePump()

	log.Printf("Client connected: %s (role %s)", client.ID, role)

	// Admin and results sessions start from ground truth: a direct
	// snapshot reply, not a broadcast.
	if role == models.RoleAdmin || role == models.RoleResults {
		rt.sendSnapshot(client)
	}

	client.ReadPump(rt.dispatch)
	log.Printf("Client disconnected: %s", client.ID)
}

func (rt *Router) sendSnapshot(client *ws.Client) {
	payload, err := json.Marshal(ws.NewEvent(ws.EVT_ALL_SUBMISSIONS, rt.sortedSnapshot()))
	if err != nil {
		log.Printf("Failed to marshal snapshot for session %s: %v", client.ID, err)
		return
	}
	select {
	case client.Send <- payload:
	default:
		log.Printf("Dropped snapshot for slow session %s", client.ID)
	}
}

// sortedSnapshot orders by creation instant; directory enumeration order
// is not a contract, so the wire order is.
func (rt *Router) sortedSnapshot() []*models.Submission {
	subs := rt.Store.Snapshot()
	sorted := make([]*models.Submission, len(subs))
	copy(sorted, subs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// dispatch routes an inbound event through the handlers the client's role
// is granted. Unrecognized roles are silent observers: they get no
// handlers at all.
func (rt *Router) dispatch(c *ws.Client, e *ws.Event) {
	switch c.Role {
	case models.RoleQuestion:
		if e.Event == ws.EVT_SUBMIT {
			rt.handleSubmit(c, e)
			return
		}
	case models.RoleAdmin:
		switch e.Event {
		case ws.EVT_APPROVE:
			rt.handleApproval(c, e, models.ApprovalApproved)
			return
		case ws.EVT_DENY:
			rt.handleApproval(c, e, models.ApprovalDenied)
			return
		case ws.EVT_DELETE_ALL:
			rt.handleDeleteAll(c)
			return
		case ws.EVT_CLEAR, ws.EVT_START:
			// Pass-through display signals, relayed verbatim.
			rt.Hub.Broadcast <- e
			return
		}
	case models.RoleResults, models.RoleObserver:
		// Receive-only.
	}
	log.Printf("Ignoring %q from session %s (role %s)", e.Event, c.ID, c.Role)
}

func (rt *Router) handleSubmit(c *ws.Client, e *ws.Event) {
	var strokes []models.Stroke
	if err := json.Unmarshal(e.Data, &strokes); err != nil {
		log.Printf("Invalid strokes from session %s: %v", c.ID, err)
		return
	}

	sub, err := rt.Store.Create(strokes)
	if err != nil {
		// No broadcast for a failed write; the submitter's missing echo
		// is the only failure signal this protocol has.
		log.Printf("Failed to store submission from session %s: %v", c.ID, err)
		return
	}

	log.Printf("Received submission %d (%d strokes)", sub.ID, len(sub.Strokes))
	rt.Hub.Broadcast <- ws.NewEvent(ws.EVT_SUBMISSION, sub)
}

func (rt *Router) handleApproval(c *ws.Client, e *ws.Event, value models.Approval) {
	var id int64
	if err := json.Unmarshal(e.Data, &id); err != nil {
		log.Printf("Invalid submission id from session %s: %v", c.ID, err)
		return
	}

	sub, err := rt.Store.SetApproval(id, value)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Approval action on unknown submission %d", id)
		return
	}
	if err != nil {
		log.Printf("Failed to update submission %d: %v", id, err)
		return
	}

	rt.record(string(value), id)
	rt.Hub.Broadcast <- ws.NewEvent(ws.EVT_SUBMISSION_UPDATED, sub)
}

func (rt *Router) handleDeleteAll(c *ws.Client) {
	rt.Store.DeleteAll()
	rt.record("deleteAll", 0)
	if rt.OnDeleteAll != nil {
		rt.OnDeleteAll()
	}

	log.Printf("All submissions deleted by session %s", c.ID)
	rt.Hub.Broadcast <- ws.NewEvent(ws.EVT_ALL_SUBMISSIONS, []*models.Submission{})
}

func (rt *Router) record(action string, id int64) {
	if rt.Audit == nil {
		return
	}
	if err := rt.Audit.Record(action, id); err != nil {
		log.Printf("Failed to record %s in audit log: %v", action, err)
	}
}
