package room

import (
	"testing"
)

func testClient(id, name string, buf int) *Client {
	return &Client{
		ID:     id,
		ConnID: "conn-" + id,
		Name:   name,
		send:   make(chan []byte, buf),
	}
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestSourceFieldsChangeTogether(t *testing.T) {
	r := newRoom("r")

	if _, _, ok := r.Source(); ok {
		t.Fatal("new room reports a source")
	}

	r.SetSource("/media/r/movie.mp4", "movie.mp4")
	url, name, ok := r.Source()
	if !ok || url != "/media/r/movie.mp4" || name != "movie.mp4" {
		t.Fatalf("Source() = %q, %q, %v", url, name, ok)
	}

	// A blank URL clears both fields; they are never half-set.
	r.SetSource("", "leftover.mp4")
	if _, _, ok := r.Source(); ok {
		t.Fatal("source still present after clearing")
	}
}

func TestBroadcasterPointer(t *testing.T) {
	r := newRoom("r")

	if _, ok := r.Broadcaster(); ok {
		t.Fatal("new room reports a broadcaster")
	}
	r.SetBroadcaster("abc")
	if id, ok := r.Broadcaster(); !ok || id != "abc" {
		t.Fatalf("Broadcaster() = %q, %v", id, ok)
	}
	r.ClearBroadcaster()
	if _, ok := r.Broadcaster(); ok {
		t.Fatal("broadcaster survived ClearBroadcaster")
	}
}

func TestRegisterUnregister(t *testing.T) {
	r := newRoom("r")
	a := testClient("a", "Ana", 4)
	b := testClient("b", "Ben", 4)
	r.register(a)
	r.register(b)

	if r.MemberCount() != 2 {
		t.Fatalf("MemberCount() = %d, want 2", r.MemberCount())
	}

	id, name, ok := r.unregister(b.ConnID)
	if !ok || id != "b" || name != "Ben" {
		t.Fatalf("unregister = %q, %q, %v", id, name, ok)
	}
	if r.MemberCount() != 1 {
		t.Fatalf("MemberCount() after leave = %d, want 1", r.MemberCount())
	}
	for _, m := range r.Members() {
		if m.ClientID == "b" {
			t.Fatal("departed member still present in snapshot")
		}
	}

	// Disconnect for a never-registered transport id is a no-op.
	if _, _, ok := r.unregister("conn-ghost"); ok {
		t.Fatal("unregister succeeded for unknown connection id")
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	r := newRoom("r")
	a := testClient("a", "Ana", 4)
	b := testClient("b", "Ben", 4)
	c := testClient("c", "Cho", 4)
	for _, cl := range []*Client{a, b, c} {
		r.register(cl)
	}

	r.broadcastExcept(a, []byte(`{"type":"chat","text":"hi"}`))

	if got := len(drain(a)); got != 0 {
		t.Fatalf("sender received %d messages", got)
	}
	if got := len(drain(b)); got != 1 {
		t.Fatalf("member b received %d messages, want 1", got)
	}
	if got := len(drain(c)); got != 1 {
		t.Fatalf("member c received %d messages, want 1", got)
	}
}

func TestBroadcastSkipsFullBuffers(t *testing.T) {
	r := newRoom("r")
	healthy := testClient("h", "Hana", 4)
	stalled := testClient("s", "Sam", 1)
	r.register(healthy)
	r.register(stalled)
	stalled.send <- []byte("backlog") // fill the buffer

	// The stalled member must not prevent delivery to the healthy one.
	r.broadcastAll([]byte("update"))

	if got := len(drain(healthy)); got != 1 {
		t.Fatalf("healthy member received %d messages, want 1", got)
	}
}

func TestBroadcastSkipsClosedClients(t *testing.T) {
	r := newRoom("r")
	open := testClient("o", "Olla", 4)
	dead := testClient("d", "Dee", 4)
	r.register(open)
	r.register(dead)
	dead.closeSend()

	r.broadcastAll([]byte("still going"))

	if got := len(drain(open)); got != 1 {
		t.Fatalf("open member received %d messages, want 1", got)
	}
}

func TestUnicastOnlyReachesTarget(t *testing.T) {
	r := newRoom("r")
	a := testClient("a", "Ana", 4)
	b := testClient("b", "Ben", 4)
	c := testClient("c", "Cho", 4)
	for _, cl := range []*Client{a, b, c} {
		r.register(cl)
	}

	r.sendTo("b", []byte(`{"type":"webrtc-offer","to":"b"}`))
	r.sendTo("nobody", []byte("dropped")) // silently

	if got := len(drain(b)); got != 1 {
		t.Fatalf("target received %d messages, want 1", got)
	}
	if got := len(drain(a)) + len(drain(c)); got != 0 {
		t.Fatalf("non-targets received %d messages", got)
	}
}

func TestParseEnvelopeKeepsRawBytes(t *testing.T) {
	raw := []byte(`{"type":"chat","text":"hello","extra":{"nested":true}}`)
	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeChat {
		t.Fatalf("Type = %q", env.Type)
	}
	if string(env.Raw()) != string(raw) {
		t.Fatal("Raw() does not round-trip the verbatim payload")
	}

	if _, err := ParseEnvelope([]byte("not json")); err == nil {
		t.Fatal("ParseEnvelope accepted garbage")
	}
}
