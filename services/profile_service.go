// services/profile_service.go
package services

import (
	"sync"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/persistence"
)

// ProfileService 在持久层之上提供用户资料查询，带一层短 TTL 缓存：
// 同一用户重连或重复 join 时不必每次打到数据库。
type ProfileService struct {
	store persistence.Store
	ttl   time.Duration

	cache map[string]cachedProfile
	mutex sync.RWMutex
}

type cachedProfile struct {
	profile models.UserProfile
	fetched time.Time
}

func NewProfileService(store persistence.Store, ttl time.Duration) *ProfileService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ProfileService{
		store: store,
		ttl:   ttl,
		cache: make(map[string]cachedProfile),
	}
}

// Lookup 实现 auth.Profiles
func (s *ProfileService) Lookup(userID string) (models.UserProfile, error) {
	s.mutex.RLock()
	entry, ok := s.cache[userID]
	s.mutex.RUnlock()
	if ok && time.Since(entry.fetched) < s.ttl {
		return entry.profile, nil
	}

	profile, err := s.store.GetUserProfile(userID)
	if err != nil {
		return models.UserProfile{}, err
	}

	s.mutex.Lock()
	s.cache[userID] = cachedProfile{profile: profile, fetched: time.Now()}
	s.mutex.Unlock()
	return profile, nil
}

// Invalidate 清除某个用户的缓存条目（资料更新后调用）
func (s *ProfileService) Invalidate(userID string) {
	s.mutex.Lock()
	delete(s.cache, userID)
	s.mutex.Unlock()
}
