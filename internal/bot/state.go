package bot

import (
	"sync"

	"github.com/ledassalon/slotbot/internal/model"
)

type state string

const (
	stateNone          state = ""
	stateRegName       state = "reg_name"
	stateRegLast       state = "reg_last"
	stateRegPhone      state = "reg_phone"
	stateChooseService state = "choose_service"
	stateChooseTime    state = "choose_time"
	stateChooseCatch   state = "choose_catch"
	stateOfferCatch    state = "offer_catch"
	stateMyBooking     state = "my_booking"
)

// session is one user's conversation position plus the scratch values the
// multi-step flows accumulate.
type session struct {
	state   state
	stack   []state
	regName string
	regLast string
	phone   string
	service string
	offered string
}

// sessions is shared between the update loop and callback handlers, so
// all access goes through the mutex.
type sessions struct {
	mu    sync.Mutex
	byUID map[int64]*session
}

func newSessions() *sessions {
	return &sessions{byUID: make(map[int64]*session)}
}

func (s *sessions) get(uid int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUID[uid]
	if !ok {
		sess = &session{}
		s.byUID[uid] = sess
	}
	return sess
}

func (s *sessions) push(uid int64, next state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUID[uid]
	if !ok {
		sess = &session{}
		s.byUID[uid] = sess
	}
	if sess.state != stateNone {
		sess.stack = append(sess.stack, sess.state)
	}
	sess.state = next
}

func (s *sessions) pop(uid int64) state {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUID[uid]
	if !ok {
		return stateNone
	}
	if n := len(sess.stack); n > 0 {
		sess.state = sess.stack[n-1]
		sess.stack = sess.stack[:n-1]
	} else {
		sess.state = stateNone
	}
	return sess.state
}

func (s *sessions) reset(uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUID[uid] = &session{}
}

// registry caches clients by messenger user id once they have passed
// /start, saving a store read per message.
type registry struct {
	mu    sync.Mutex
	byUID map[int64]model.Client
}

func newRegistry() *registry {
	return &registry{byUID: make(map[int64]model.Client)}
}

func (r *registry) get(uid int64) (model.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUID[uid]
	return c, ok
}

func (r *registry) put(uid int64, c model.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUID[uid] = c
}
