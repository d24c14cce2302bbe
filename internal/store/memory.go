package store

import (
	"context"
	"sync"
	"time"

	"github.com/tariel-x/referral/internal/models"
)

type MemoryStore struct {
	mu sync.RWMutex

	users        []*models.User
	usersByID    map[string]*models.User
	usersByEmail map[string]*models.User
	usersByCode  map[string]*models.User

	links       []*models.ReferralLink
	linksByCode map[string]*models.ReferralLink
	linkSeq     int64

	clicks []models.ReferralClick

	nowFn func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{nowFn: time.Now}
	s.resetLocked()
	return s
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if _, exists := s.usersByCode[user.ReferralCode]; exists {
		return ErrDuplicateReferralCode
	}

	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.nowFn()
	}

	stored := *user
	s.insertUserLocked(&stored)
	return nil
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) ReferralCodeTaken(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.usersByCode[code]
	return exists, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	return users, nil
}

func (s *MemoryStore) CreateLink(_ context.Context, link *models.ReferralLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[link.UserID]; !ok {
		return ErrUserNotFound
	}
	if _, exists := s.linksByCode[link.LinkCode]; exists {
		return ErrDuplicateLinkCode
	}

	if err := link.BeforeCreate(nil); err != nil {
		return err
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.nowFn()
	}

	stored := *link
	s.insertLinkLocked(&stored)
	link.Seq = stored.Seq
	return nil
}

func (s *MemoryStore) LinksByUser(_ context.Context, userID string) ([]models.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := make([]models.ReferralLink, 0)
	for _, l := range s.links {
		if l.UserID == userID {
			links = append(links, *l)
		}
	}
	return links, nil
}

func (s *MemoryStore) LinkByCode(_ context.Context, code string) (*models.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.linksByCode[code]
	if !ok {
		return nil, ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (s *MemoryStore) IncrementClick(_ context.Context, code string) (*models.ReferralLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.linksByCode[code]
	if !ok {
		return nil, ErrLinkNotFound
	}
	link.ClickCount++
	copied := *link
	return &copied, nil
}

func (s *MemoryStore) AppendClick(_ context.Context, click *models.ReferralClick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := click.BeforeCreate(nil); err != nil {
		return err
	}
	if click.ClickedAt.IsZero() {
		click.ClickedAt = s.nowFn()
	}
	s.clicks = append(s.clicks, *click)
	return nil
}

func (s *MemoryStore) ClicksForLinks(_ context.Context, codes []string, since time.Time) ([]models.ReferralClick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		wanted[code] = struct{}{}
	}

	var clicks []models.ReferralClick
	for _, click := range s.clicks {
		if _, ok := wanted[click.LinkCode]; !ok {
			continue
		}
		if click.ClickedAt.Before(since) {
			continue
		}
		clicks = append(clicks, click)
	}
	return clicks, nil
}

func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := Counts{
		Users:  len(s.users),
		Links:  len(s.links),
		Clicks: len(s.clicks),
	}
	for _, l := range s.links {
		counts.LinkClicks += l.ClickCount
		counts.Registrations += l.RegistrationCount
	}
	return counts, nil
}

func (s *MemoryStore) Reset(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	now := s.nowFn()

	for i := range snapshot.Users {
		user := snapshot.Users[i]
		if err := user.BeforeCreate(nil); err != nil {
			return err
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		s.insertUserLocked(&user)
	}
	for i := range snapshot.Links {
		link := snapshot.Links[i]
		if _, ok := s.usersByID[link.UserID]; !ok {
			s.resetLocked()
			return ErrUserNotFound
		}
		if err := link.BeforeCreate(nil); err != nil {
			return err
		}
		if link.CreatedAt.IsZero() {
			link.CreatedAt = now
		}
		s.insertLinkLocked(&link)
	}
	return nil
}

func (s *MemoryStore) resetLocked() {
	s.users = nil
	s.usersByID = make(map[string]*models.User)
	s.usersByEmail = make(map[string]*models.User)
	s.usersByCode = make(map[string]*models.User)
	s.links = nil
	s.linksByCode = make(map[string]*models.ReferralLink)
	s.linkSeq = 0
	s.clicks = nil
}

func (s *MemoryStore) insertUserLocked(user *models.User) {
	s.users = append(s.users, user)
	s.usersByID[user.ID] = user
	s.usersByEmail[user.Email] = user
	s.usersByCode[user.ReferralCode] = user
}

func (s *MemoryStore) insertLinkLocked(link *models.ReferralLink) {
	s.linkSeq++
	link.Seq = s.linkSeq
	s.links = append(s.links, link)
	s.linksByCode[link.LinkCode] = link
}
