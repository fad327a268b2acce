package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/villanet/booking/internal/clock"
	"github.com/villanet/booking/internal/domain"
)

func TestReservationService_CreateReservation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	villa := domain.Property{ID: 7, Name: "Villa Rosa", OwnerID: 2, PricePerNight: decimal.NewFromInt(50)}

	makeSvc := func(existing ...domain.Reservation) (*ReservationService, *fakeReservationRepo, *fakePublisher) {
		repo := newFakeReservationRepo(existing...)
		pub := &fakePublisher{}
		svc := NewReservationService(
			repo,
			fakeProperties{villa.ID: villa},
			fakeUsers{1: "guest@example.com", 2: "owner@example.com"},
			pub,
			clock.NewFixed(now),
			quietLogger(),
		)
		return svc, repo, pub
	}

	t.Run("computes nights and price and publishes one event", func(t *testing.T) {
		svc, repo, pub := makeSvc()

		got, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.June, 10),
			EndDate:    domain.NewDate(2025, time.June, 12),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID == 0 {
			t.Fatalf("expected reservation ID to be set")
		}
		if got.TotalNights != 2 {
			t.Fatalf("expected 2 nights, got %d", got.TotalNights)
		}
		if !got.TotalPrice.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected price 100, got %s", got.TotalPrice)
		}
		if !got.CreatedAt.Equal(now) {
			t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
		}
		if len(repo.rows) != 1 {
			t.Fatalf("expected 1 stored reservation, got %d", len(repo.rows))
		}

		if len(pub.created) != 1 {
			t.Fatalf("expected exactly 1 created event, got %d", len(pub.created))
		}
		ev := pub.created[0]
		if ev.ReservationID != got.ID {
			t.Fatalf("expected event for reservation %d, got %d", got.ID, ev.ReservationID)
		}
		if ev.BookedBy != "guest@example.com" || ev.OwnerEmail != "owner@example.com" {
			t.Fatalf("unexpected emails in event: %+v", ev)
		}
		if ev.PropertyName != villa.Name || ev.TotalNights != 2 || !ev.TotalPrice.Equal(got.TotalPrice) {
			t.Fatalf("unexpected snapshot in event: %+v", ev)
		}
		if len(pub.canceled) != 0 {
			t.Fatalf("expected no canceled events")
		}
	})

	t.Run("end not after start is invalid regardless of property", func(t *testing.T) {
		svc, repo, pub := makeSvc()

		for _, propertyID := range []int64{villa.ID, 999} {
			_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
				UserID:     1,
				PropertyID: propertyID,
				StartDate:  domain.NewDate(2025, time.June, 12),
				EndDate:    domain.NewDate(2025, time.June, 12),
			})
			if !errors.Is(err, domain.ErrInvalidRange) {
				t.Fatalf("property %d: expected ErrInvalidRange, got %v", propertyID, err)
			}

			_, err = svc.CreateReservation(context.Background(), CreateReservationInput{
				UserID:     1,
				PropertyID: propertyID,
				StartDate:  domain.NewDate(2025, time.June, 12),
				EndDate:    domain.NewDate(2025, time.June, 10),
			})
			if !errors.Is(err, domain.ErrInvalidRange) {
				t.Fatalf("property %d: expected ErrInvalidRange, got %v", propertyID, err)
			}
		}
		if len(repo.rows) != 0 || len(pub.created) != 0 {
			t.Fatalf("expected nothing stored or published")
		}
	})

	t.Run("unknown property", func(t *testing.T) {
		svc, _, _ := makeSvc()

		_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: 999,
			StartDate:  domain.NewDate(2025, time.June, 10),
			EndDate:    domain.NewDate(2025, time.June, 12),
		})
		if !errors.Is(err, domain.ErrPropertyNotFound) {
			t.Fatalf("expected ErrPropertyNotFound, got %v", err)
		}
	})

	t.Run("half-open boundaries", func(t *testing.T) {
		svc, repo, _ := makeSvc(domain.Reservation{
			ID:         1,
			PropertyID: villa.ID,
			UserID:     3,
			StartDate:  domain.NewDate(2025, time.June, 12),
			EndDate:    domain.NewDate(2025, time.June, 15),
		})

		_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.June, 14),
			EndDate:    domain.NewDate(2025, time.June, 16),
		})
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		_, err = svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.June, 15),
			EndDate:    domain.NewDate(2025, time.June, 17),
		})
		if err != nil {
			t.Fatalf("expected booking on checkout day to succeed, got %v", err)
		}
		if len(repo.rows) != 2 {
			t.Fatalf("expected 2 reservations, got %d", len(repo.rows))
		}
		assertNoOverlaps(t, repo)
	})

	t.Run("same dates on another property do not conflict", func(t *testing.T) {
		other := domain.Property{ID: 8, Name: "Villa Blu", OwnerID: 2, PricePerNight: decimal.NewFromInt(80)}
		repo := newFakeReservationRepo(domain.Reservation{
			ID:         1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.June, 12),
			EndDate:    domain.NewDate(2025, time.June, 15),
		})
		svc := NewReservationService(repo, fakeProperties{villa.ID: villa, other.ID: other},
			fakeUsers{1: "guest@example.com", 2: "owner@example.com"}, &fakePublisher{}, clock.NewFixed(now), quietLogger())

		got, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: other.ID,
			StartDate:  domain.NewDate(2025, time.June, 12),
			EndDate:    domain.NewDate(2025, time.June, 15),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.TotalPrice.Equal(decimal.NewFromInt(240)) {
			t.Fatalf("expected price 240, got %s", got.TotalPrice)
		}
	})

	t.Run("publish failure does not fail the booking", func(t *testing.T) {
		svc, repo, pub := makeSvc()
		pub.err = errors.New("broker down")

		got, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.July, 1),
			EndDate:    domain.NewDate(2025, time.July, 3),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := repo.rows[got.ID]; !ok {
			t.Fatalf("expected reservation to stay committed")
		}
	})

	t.Run("unresolvable email skips the event but keeps the booking", func(t *testing.T) {
		repo := newFakeReservationRepo()
		pub := &fakePublisher{}
		svc := NewReservationService(repo, fakeProperties{villa.ID: villa}, fakeUsers{1: "guest@example.com"},
			pub, clock.NewFixed(now), quietLogger())

		got, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.July, 1),
			EndDate:    domain.NewDate(2025, time.July, 2),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID == 0 || len(pub.created) != 0 {
			t.Fatalf("expected committed booking without event, got id=%d events=%d", got.ID, len(pub.created))
		}
	})

	t.Run("price is a snapshot", func(t *testing.T) {
		props := fakeProperties{villa.ID: villa}
		repo := newFakeReservationRepo()
		svc := NewReservationService(repo, props, fakeUsers{1: "guest@example.com", 2: "owner@example.com"},
			&fakePublisher{}, clock.NewFixed(now), quietLogger())

		got, err := svc.CreateReservation(context.Background(), CreateReservationInput{
			UserID:     1,
			PropertyID: villa.ID,
			StartDate:  domain.NewDate(2025, time.August, 1),
			EndDate:    domain.NewDate(2025, time.August, 4),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		repriced := villa
		repriced.PricePerNight = decimal.NewFromInt(500)
		props[villa.ID] = repriced

		list, err := svc.ListForUser(context.Background(), 1, domain.Page{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list.Items) != 1 || !list.Items[0].TotalPrice.Equal(got.TotalPrice) {
			t.Fatalf("expected stored price %s to be unchanged, got %+v", got.TotalPrice, list.Items)
		}
	})
}

func TestReservationService_CreateReservation_Concurrent(t *testing.T) {
	t.Parallel()

	villa := domain.Property{ID: 7, Name: "Villa Rosa", OwnerID: 2, PricePerNight: decimal.NewFromInt(50)}
	repo := newFakeReservationRepo()
	repo.overlapDelay = time.Millisecond
	pub := &fakePublisher{}
	svc := NewReservationService(repo, fakeProperties{villa.ID: villa},
		fakeUsers{1: "a@example.com", 2: "owner@example.com", 3: "b@example.com"},
		pub, clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)), quietLogger())

	inputs := []CreateReservationInput{
		{UserID: 1, PropertyID: villa.ID, StartDate: domain.NewDate(2025, time.June, 10), EndDate: domain.NewDate(2025, time.June, 14)},
		{UserID: 3, PropertyID: villa.ID, StartDate: domain.NewDate(2025, time.June, 12), EndDate: domain.NewDate(2025, time.June, 16)},
	}

	for round := 0; round < 50; round++ {
		repo.reset()

		start := make(chan struct{})
		errs := make([]error, len(inputs))
		var wg sync.WaitGroup
		for i, in := range inputs {
			wg.Add(1)
			go func(i int, in CreateReservationInput) {
				defer wg.Done()
				<-start
				_, errs[i] = svc.CreateReservation(context.Background(), in)
			}(i, in)
		}
		close(start)
		wg.Wait()

		successes, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if successes != 1 || conflicts != 1 {
			t.Fatalf("round %d: expected 1 success and 1 conflict, got %d and %d", round, successes, conflicts)
		}
		assertNoOverlaps(t, repo)
		if repo.unlockedChecks != 0 {
			t.Fatalf("round %d: %d overlap checks ran without the property lock", round, repo.unlockedChecks)
		}
	}
}

func TestReservationService_CancelReservation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
	villa := domain.Property{ID: 7, Name: "Villa Rosa", OwnerID: 2, PricePerNight: decimal.NewFromInt(50)}
	booking := func(start domain.Date) domain.Reservation {
		return domain.Reservation{
			ID:          42,
			PropertyID:  villa.ID,
			UserID:      1,
			StartDate:   start,
			EndDate:     start.AddDays(2),
			TotalNights: 2,
			TotalPrice:  decimal.NewFromInt(100),
		}
	}
	makeSvc := func(r domain.Reservation) (*ReservationService, *fakeReservationRepo, *fakePublisher) {
		repo := newFakeReservationRepo(r)
		pub := &fakePublisher{}
		svc := NewReservationService(repo, fakeProperties{villa.ID: villa},
			fakeUsers{1: "guest@example.com", 2: "owner@example.com"}, pub, clock.NewFixed(now), quietLogger())
		return svc, repo, pub
	}

	t.Run("four days ahead succeeds and publishes snapshot", func(t *testing.T) {
		r := booking(domain.NewDate(2025, time.June, 5))
		svc, repo, pub := makeSvc(r)

		if err := svc.CancelReservation(context.Background(), CancelReservationInput{UserID: 1, ReservationID: r.ID}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := repo.rows[r.ID]; ok {
			t.Fatalf("expected reservation deleted")
		}
		if len(pub.canceled) != 1 {
			t.Fatalf("expected 1 canceled event, got %d", len(pub.canceled))
		}
		ev := pub.canceled[0]
		if ev.ReservationID != r.ID || ev.PropertyName != villa.Name {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if !ev.StartDate.Equal(r.StartDate) || !ev.EndDate.Equal(r.EndDate) {
			t.Fatalf("expected dates of deleted reservation, got %+v", ev)
		}
		if ev.BookedBy != "guest@example.com" || ev.OwnerEmail != "owner@example.com" {
			t.Fatalf("unexpected emails: %+v", ev)
		}
		if !ev.CanceledAt.Equal(now) {
			t.Fatalf("expected canceled_at %v, got %v", now, ev.CanceledAt)
		}
	})

	t.Run("three days ahead is too late", func(t *testing.T) {
		r := booking(domain.NewDate(2025, time.June, 4))
		svc, repo, pub := makeSvc(r)

		err := svc.CancelReservation(context.Background(), CancelReservationInput{UserID: 1, ReservationID: r.ID})
		if !errors.Is(err, domain.ErrTooLate) {
			t.Fatalf("expected ErrTooLate, got %v", err)
		}
		if _, ok := repo.rows[r.ID]; !ok {
			t.Fatalf("expected reservation kept")
		}
		if len(pub.canceled) != 0 {
			t.Fatalf("expected no event")
		}
	})

	t.Run("past reservation is too late", func(t *testing.T) {
		r := booking(domain.NewDate(2025, time.May, 20))
		svc, _, _ := makeSvc(r)

		err := svc.CancelReservation(context.Background(), CancelReservationInput{UserID: 1, ReservationID: r.ID})
		if !errors.Is(err, domain.ErrTooLate) {
			t.Fatalf("expected ErrTooLate, got %v", err)
		}
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		r := booking(domain.NewDate(2025, time.July, 1))
		svc, repo, _ := makeSvc(r)

		err := svc.CancelReservation(context.Background(), CancelReservationInput{UserID: 2, ReservationID: r.ID})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if _, ok := repo.rows[r.ID]; !ok {
			t.Fatalf("expected reservation kept")
		}
	})

	t.Run("missing reservation", func(t *testing.T) {
		svc, _, _ := makeSvc(booking(domain.NewDate(2025, time.July, 1)))

		err := svc.CancelReservation(context.Background(), CancelReservationInput{UserID: 1, ReservationID: 404})
		if !errors.Is(err, domain.ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
	})

	t.Run("custom lead time", func(t *testing.T) {
		r := booking(domain.NewDate(2025, time.June, 3))
		repo := newFakeReservationRepo(r)
		svc := NewReservationService(repo, fakeProperties{villa.ID: villa},
			fakeUsers{1: "guest@example.com", 2: "owner@example.com"}, &fakePublisher{},
			clock.NewFixed(now), quietLogger(), WithMinCancelDays(1))

		if err := svc.CancelReservation(context.Background(), CancelReservationInput{UserID: 1, ReservationID: r.ID}); err != nil {
			t.Fatalf("expected no error with 1 day lead time, got %v", err)
		}
	})
}

func TestReservationService_Listings(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	villa := domain.Property{ID: 7, Name: "Villa Rosa", OwnerID: 2, PricePerNight: decimal.NewFromInt(50)}
	repo := newFakeReservationRepo(
		domain.Reservation{ID: 1, PropertyID: 7, UserID: 1, StartDate: domain.NewDate(2025, time.June, 20), EndDate: domain.NewDate(2025, time.June, 22), CreatedAt: base},
		domain.Reservation{ID: 2, PropertyID: 7, UserID: 1, StartDate: domain.NewDate(2025, time.June, 1), EndDate: domain.NewDate(2025, time.June, 3), CreatedAt: base.Add(time.Hour)},
		domain.Reservation{ID: 3, PropertyID: 7, UserID: 5, StartDate: domain.NewDate(2025, time.June, 10), EndDate: domain.NewDate(2025, time.June, 12), CreatedAt: base.Add(2 * time.Hour)},
	)
	svc := NewReservationService(repo, fakeProperties{villa.ID: villa}, fakeUsers{}, &fakePublisher{},
		clock.NewFixed(base), quietLogger())
	ctx := context.Background()

	t.Run("user listing newest first", func(t *testing.T) {
		list, err := svc.ListForUser(ctx, 1, domain.Page{Number: 1, Size: 1})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if list.TotalCount != 2 || len(list.Items) != 1 || list.Items[0].ID != 2 {
			t.Fatalf("unexpected first page: %+v", list)
		}
		if !list.HasNextPage() {
			t.Fatalf("expected next page")
		}

		list, err = svc.ListForUser(ctx, 1, domain.Page{Number: 2, Size: 1})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list.Items) != 1 || list.Items[0].ID != 1 || list.HasNextPage() {
			t.Fatalf("unexpected second page: %+v", list)
		}
	})

	t.Run("owner listing", func(t *testing.T) {
		list, err := svc.ListForOwner(ctx, villa.ID, villa.OwnerID, domain.Page{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if list.TotalCount != 3 || list.Items[0].ID != 2 {
			t.Fatalf("unexpected owner listing: %+v", list)
		}
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		_, err := svc.ListForOwner(ctx, villa.ID, 1, domain.Page{})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("missing property", func(t *testing.T) {
		_, err := svc.ListForOwner(ctx, 99, villa.OwnerID, domain.Page{})
		if !errors.Is(err, domain.ErrPropertyNotFound) {
			t.Fatalf("expected ErrPropertyNotFound, got %v", err)
		}
	})
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func assertNoOverlaps(t *testing.T, repo *fakeReservationRepo) {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, a := range repo.rows {
		for _, b := range repo.rows {
			if a.ID == b.ID || a.PropertyID != b.PropertyID {
				continue
			}
			if domain.Overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate) {
				t.Fatalf("reservations %d and %d overlap", a.ID, b.ID)
			}
		}
	}
}

// fakeReservationRepo holds per-property locks for the life of a WithTx call,
// like pg_advisory_xact_lock. Overlap checks made without the lock are counted.
type fakeReservationRepo struct {
	mu             sync.Mutex
	rows           map[int64]domain.Reservation
	nextID         int64
	locks          map[int64]*sync.Mutex
	unlockedChecks int
	overlapDelay   time.Duration
}

type txLocksKey struct{}

type txLocks struct {
	held []int64
}

func newFakeReservationRepo(rows ...domain.Reservation) *fakeReservationRepo {
	f := &fakeReservationRepo{
		rows:  make(map[int64]domain.Reservation),
		locks: make(map[int64]*sync.Mutex),
	}
	for _, r := range rows {
		f.rows[r.ID] = r
		if r.ID > f.nextID {
			f.nextID = r.ID
		}
	}
	return f
}

func (f *fakeReservationRepo) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[int64]domain.Reservation)
	f.unlockedChecks = 0
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	locks := &txLocks{}
	err := fn(context.WithValue(ctx, txLocksKey{}, locks))
	for _, id := range locks.held {
		f.propertyLock(id).Unlock()
	}
	return err
}

func (f *fakeReservationRepo) LockProperty(ctx context.Context, propertyID int64) error {
	locks, ok := ctx.Value(txLocksKey{}).(*txLocks)
	if !ok {
		return errors.New("lock property: no transaction in context")
	}
	for _, id := range locks.held {
		if id == propertyID {
			return nil
		}
	}
	f.propertyLock(propertyID).Lock()
	locks.held = append(locks.held, propertyID)
	return nil
}

func (f *fakeReservationRepo) propertyLock(propertyID int64) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.locks[propertyID]
	if !ok {
		m = &sync.Mutex{}
		f.locks[propertyID] = m
	}
	return m
}

func holdsLock(ctx context.Context, propertyID int64) bool {
	locks, ok := ctx.Value(txLocksKey{}).(*txLocks)
	if !ok {
		return false
	}
	for _, id := range locks.held {
		if id == propertyID {
			return true
		}
	}
	return false
}

func (f *fakeReservationRepo) HasOverlap(ctx context.Context, propertyID int64, start, end domain.Date) (bool, error) {
	f.mu.Lock()
	if !holdsLock(ctx, propertyID) {
		f.unlockedChecks++
	}
	overlap := false
	for _, r := range f.rows {
		if r.PropertyID == propertyID && domain.Overlaps(start, end, r.StartDate, r.EndDate) {
			overlap = true
			break
		}
	}
	delay := f.overlapDelay
	f.mu.Unlock()

	// Widens the check-then-insert window so a missing lock shows up as a double booking.
	time.Sleep(delay)
	return overlap, nil
}

func (f *fakeReservationRepo) InsertReservation(_ context.Context, r domain.Reservation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	f.rows[r.ID] = r
	return r.ID, nil
}

func (f *fakeReservationRepo) GetReservationForUpdate(_ context.Context, id int64) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeReservationRepo) DeleteReservation(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return domain.ErrReservationNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeReservationRepo) ListByUser(_ context.Context, userID int64, page domain.Page) ([]domain.Reservation, int, error) {
	rows := f.filter(func(r domain.Reservation) bool { return r.UserID == userID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return paginate(rows, page), len(rows), nil
}

func (f *fakeReservationRepo) ListByProperty(_ context.Context, propertyID int64, page domain.Page) ([]domain.Reservation, int, error) {
	rows := f.filter(func(r domain.Reservation) bool { return r.PropertyID == propertyID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartDate.Before(rows[j].StartDate) })
	return paginate(rows, page), len(rows), nil
}

func (f *fakeReservationRepo) filter(keep func(domain.Reservation) bool) []domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func paginate(rows []domain.Reservation, page domain.Page) []domain.Reservation {
	from := page.Offset()
	if from >= len(rows) {
		return nil
	}
	to := from + page.Size
	if to > len(rows) {
		to = len(rows)
	}
	return rows[from:to]
}

type fakeProperties map[int64]domain.Property

func (f fakeProperties) GetProperty(_ context.Context, id int64) (domain.Property, error) {
	p, ok := f[id]
	if !ok {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	return p, nil
}

type fakeUsers map[int64]string

func (f fakeUsers) GetEmail(_ context.Context, userID int64) (string, error) {
	email, ok := f[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return email, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	created  []domain.ReservationCreated
	canceled []domain.ReservationCanceled
	err      error
}

func (f *fakePublisher) PublishCreated(_ context.Context, ev domain.ReservationCreated) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, ev)
	return nil
}

func (f *fakePublisher) PublishCanceled(_ context.Context, ev domain.ReservationCanceled) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.canceled = append(f.canceled, ev)
	return nil
}
