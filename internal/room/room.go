package room

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Room is one watch-party: a set of members sharing playback control, chat,
// and a signaling relay, plus the "now playing" pointer the media endpoint
// serves from.
//
// The membership maps, the source pointer, and the broadcaster pointer are
// guarded independently so a broadcast never contends with a source update.
type Room struct {
	ID string

	// mu guards the three membership structures and names; they always
	// change together on join/leave.
	mu           sync.RWMutex
	clients      map[string]*Client // clientId -> connection
	connToClient map[string]string  // transport connection id -> clientId
	names        map[string]string  // clientId -> display name
	emptySince   time.Time          // when membership last dropped to zero

	srcMu     sync.Mutex
	mediaURL  string
	fileName  string
	hasSource bool

	bcMu          sync.Mutex
	broadcasterID string
	hasBroadcast  bool
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		clients:      make(map[string]*Client),
		connToClient: make(map[string]string),
		names:        make(map[string]string),
		emptySince:   time.Now(),
	}
}

// register adds a fully-initialized client to the membership maps.
func (r *Room) register(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	r.connToClient[c.ConnID] = c.ID
	r.names[c.ID] = c.Name
	r.emptySince = time.Time{}
	r.mu.Unlock()
}

// unregister removes the connection identified by transport connID from all
// membership structures. Disconnect notifications arrive keyed by transport
// id, so the clientId is recovered through connToClient. Returns ok=false if
// the connection was never registered.
func (r *Room) unregister(connID string) (clientID, name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientID, ok = r.connToClient[connID]
	if !ok {
		return "", "", false
	}
	name = r.names[clientID]
	delete(r.clients, clientID)
	delete(r.connToClient, connID)
	delete(r.names, clientID)
	if len(r.clients) == 0 {
		r.emptySince = time.Now()
	}
	return clientID, name, true
}

// SetSource records the active playback source. URL and file name change
// together: a blank URL clears both. Called from the websocket dispatch and
// from the HTTP upload path; last writer wins.
func (r *Room) SetSource(url, fileName string) {
	r.srcMu.Lock()
	r.mediaURL = url
	r.fileName = fileName
	r.hasSource = url != ""
	r.srcMu.Unlock()
}

// Source returns the current playback source, ok=false if none announced yet.
func (r *Room) Source() (url, fileName string, ok bool) {
	r.srcMu.Lock()
	defer r.srcMu.Unlock()
	return r.mediaURL, r.fileName, r.hasSource
}

// SetBroadcaster records which member is screen/camera sharing.
func (r *Room) SetBroadcaster(clientID string) {
	r.bcMu.Lock()
	r.broadcasterID = clientID
	r.hasBroadcast = clientID != ""
	r.bcMu.Unlock()
}

// ClearBroadcaster removes the broadcaster pointer.
func (r *Room) ClearBroadcaster() {
	r.bcMu.Lock()
	r.broadcasterID = ""
	r.hasBroadcast = false
	r.bcMu.Unlock()
}

// Broadcaster returns the sharing member's clientId. The id is not
// revalidated against membership: it may reference a member that has since
// left, until the next introduce-broadcaster or end-broadcast.
func (r *Room) Broadcaster() (string, bool) {
	r.bcMu.Lock()
	defer r.bcMu.Unlock()
	return r.broadcasterID, r.hasBroadcast
}

// Members returns a snapshot of the current clientId -> name mapping. The
// snapshot is consistent with itself but not linearizable against
// concurrent joins and leaves.
func (r *Room) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.names))
	for id, name := range r.names {
		members = append(members, Member{ClientID: id, Name: name})
	}
	return members
}

// MemberCount returns the number of active connections.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// idle reports whether the room has been empty since before the deadline.
func (r *Room) idle(deadline time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) == 0 && !r.emptySince.IsZero() && r.emptySince.Before(deadline)
}

// broadcastExcept relays data to every member other than sender. Sends are
// non-blocking per recipient: a dead or stalled member is skipped (and
// disconnected) rather than allowed to hold up delivery to the rest.
func (r *Room) broadcastExcept(sender *Client, data []byte) {
	for _, c := range r.snapshot() {
		if c == sender {
			continue
		}
		if !c.trySend(data) {
			log.WithFields(log.Fields{"roomId": r.ID, "clientId": c.ID}).
				Debug("skipping unreachable member during broadcast")
		}
	}
}

// broadcastAll relays data to every current member.
func (r *Room) broadcastAll(data []byte) {
	for _, c := range r.snapshot() {
		c.trySend(data)
	}
}

// sendTo unicasts data to one member by clientId. Unknown or closed targets
// are dropped silently; the signaling relay surfaces no error to the sender.
func (r *Room) sendTo(clientID string, data []byte) {
	r.mu.RLock()
	target, ok := r.clients[clientID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	target.trySend(data)
}

// snapshot copies the member set so broadcast iteration never holds the
// membership lock across channel sends.
func (r *Room) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		members = append(members, c)
	}
	return members
}
