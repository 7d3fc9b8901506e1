package param

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeStore is an in-memory Store for tests. It also implements Reopener
// and StatsProvider.
type fakeStore struct {
	mu       sync.Mutex
	data     map[string]any
	failPuts bool
	reopened int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]any)}
}

func (s *fakeStore) GetBool(key string, def bool) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key].(bool); ok {
		return v, true
	}
	return def, false
}

func (s *fakeStore) GetInt32(key string, def int32) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key].(int32); ok {
		return v, true
	}
	return def, false
}

func (s *fakeStore) GetFloat32(key string, def float32) (float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key].(float32); ok {
		return v, true
	}
	return def, false
}

func (s *fakeStore) GetString(key string, def string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key].(string); ok {
		return v, true
	}
	return def, false
}

func (s *fakeStore) GetBytes(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key].([]byte); ok {
		return append([]byte(nil), v...), true
	}
	return nil, false
}

func (s *fakeStore) put(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPuts {
		return errors.New("put failed")
	}
	s.data[key] = v
	return nil
}

func (s *fakeStore) PutBool(key string, v bool) error       { return s.put(key, v) }
func (s *fakeStore) PutInt32(key string, v int32) error     { return s.put(key, v) }
func (s *fakeStore) PutFloat32(key string, v float32) error { return s.put(key, v) }
func (s *fakeStore) PutString(key string, v string) error   { return s.put(key, v) }

func (s *fakeStore) PutBytes(key string, v []byte) error {
	return s.put(key, append([]byte(nil), v...))
}

func (s *fakeStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *fakeStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
	return nil
}

func (s *fakeStore) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reopened++
	return nil
}

func (s *fakeStore) Stats() (used, free, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data), 64 - len(s.data), 64, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// pubMsg is one recorded outbound publish.
type pubMsg struct {
	topic   string
	payload []byte
}

// recorder captures publishes made through a PublishFunc.
type recorder struct {
	mu   sync.Mutex
	msgs []pubMsg
}

func (p *recorder) publish(topic string, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, pubMsg{topic: topic, payload: payload})
	return true
}

func (p *recorder) messages() []pubMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubMsg(nil), p.msgs...)
}

func (p *recorder) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		topics[i] = m.topic
	}
	return topics
}

func (p *recorder) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = nil
}

// decode unmarshals a recorded payload into a document.
func decode(t *testing.T, payload []byte) Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("decoding payload %q: %v", payload, err)
	}
	return doc
}

// newTestRegistry returns a started registry wired to a fake store and a
// publish recorder.
func newTestRegistry(t *testing.T) (*Registry, *fakeStore, *recorder) {
	t.Helper()
	s := newFakeStore()
	rec := &recorder{}
	r := NewRegistry(s, "test/params")
	r.SetPublishFunc(rec.publish)
	return r, s, rec
}
