package slackbot

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

const userCacheTTL = 30 * time.Minute

type userInfoGetter interface {
	GetUserInfo(user string) (*slack.User, error)
}

type cachedUser struct {
	name      string
	fetchedAt time.Time
}

// userDirectory resolves user ids to a friendly first name for greetings.
type userDirectory struct {
	api userInfoGetter
	now func() time.Time

	mu    sync.Mutex
	users map[string]cachedUser
}

func newUserDirectory(api userInfoGetter, now func() time.Time) *userDirectory {
	if now == nil {
		now = time.Now
	}
	return &userDirectory{api: api, now: now, users: make(map[string]cachedUser)}
}

// FirstName returns "" when the user cannot be resolved.
func (d *userDirectory) FirstName(userID string) string {
	d.mu.Lock()
	if u, ok := d.users[userID]; ok && d.now().Sub(u.fetchedAt) < userCacheTTL {
		d.mu.Unlock()
		return u.name
	}
	d.mu.Unlock()

	if d.api == nil {
		return ""
	}
	user, err := d.api.GetUserInfo(userID)
	if err != nil {
		log.Printf("slack user lookup error user=%s: %v", userID, err)
		return ""
	}
	name := firstName(user)

	d.mu.Lock()
	d.users[userID] = cachedUser{name: name, fetchedAt: d.now()}
	d.mu.Unlock()
	return name
}

func firstName(u *slack.User) string {
	for _, candidate := range []string{u.Profile.FirstName, u.Profile.DisplayName, u.RealName, u.Name} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		return strings.Fields(candidate)[0]
	}
	return ""
}
