package progress

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/data/repos/testutil"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	domprogress "github.com/yungbote/negotiator-backend/internal/domain/progress"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
)

func TestUserProgressRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewUserProgressRepo(db, testutil.Logger(t))
	user := uuid.New()

	if p, err := repo.Get(dbc, user); err != nil || p != nil {
		t.Fatalf("Get(missing): %v %v", p, err)
	}

	p, err := repo.Update(dbc, user, func(_ *gorm.DB, p *types.UserProgress) error {
		if p.Overall.RollingAverage != domprogress.NeutralScore {
			t.Errorf("new progress should start neutral, got %v", p.Overall.RollingAverage)
		}
		p.TotalConversations++
		p.Overall.RollingAverage = 72.5
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Version != 1 || p.TotalConversations != 1 {
		t.Fatalf("Update result: %+v", p)
	}

	stored, err := repo.Get(dbc, user)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v %v", stored, err)
	}
	if stored.Overall.RollingAverage != 72.5 || stored.Version != 1 || stored.ClaimingValue.RollingAverage != domprogress.NeutralScore {
		t.Fatalf("stored: %+v", stored)
	}

	boom := errors.New("boom")
	if _, err := repo.Update(dbc, user, func(_ *gorm.DB, p *types.UserProgress) error {
		p.TotalConversations = 99
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Update should surface fn error, got %v", err)
	}
	if again, _ := repo.Get(dbc, user); again.TotalConversations != 1 {
		t.Fatalf("failed update leaked: %d", again.TotalConversations)
	}
}

func TestUserProgressRepoConcurrentIncrements(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewUserProgressRepo(db, testutil.Logger(t))
	user := uuid.New()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(dbc, user, func(_ *gorm.DB, p *types.UserProgress) error {
				p.TotalConversations++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	p, err := repo.Get(dbc, user)
	if err != nil || p == nil {
		t.Fatalf("Get: %v %v", p, err)
	}
	if p.TotalConversations != writers || p.Version != writers {
		t.Fatalf("lost update: total=%d version=%d", p.TotalConversations, p.Version)
	}
}
