package admin

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/purpose-technology/namapp-server/internal/appwrite"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/logging"
)

// Snapshot is the dashboard summary. Recomputed on every request; every field
// is always present, with zero standing in for an empty or failed source.
// TotalApps includes the legacy store's full collection count, while
// PendingApps scans at most legacyListLimit legacy documents, so past that
// cap the legacy contribution to PendingApps is a lower bound.
type Snapshot struct {
	TotalUsers                   int64   `json:"totalUsers"`
	TotalApps                    int64   `json:"totalApps"`
	PendingApps                  int64   `json:"pendingApps"`
	TotalDownloads               int64   `json:"totalDownloads"`
	TotalProducts                int64   `json:"totalProducts"`
	PendingProducts              int64   `json:"pendingProducts"`
	TotalOrders                  int64   `json:"totalOrders"`
	PendingOrders                int64   `json:"pendingOrders"`
	TotalOrderValue              float64 `json:"totalOrderValue"`
	TotalRatings                 int64   `json:"totalRatings"`
	AverageRating                float64 `json:"averageRating"`
	TotalContacts                int64   `json:"totalContacts"`
	NewContacts                  int64   `json:"newContacts"`
	DrivingSchoolPackages        int64   `json:"drivingSchoolPackages"`
	DrivingSchoolBookings        int64   `json:"drivingSchoolBookings"`
	DrivingSchoolPendingBookings int64   `json:"drivingSchoolPendingBookings"`
}

// LegacyStore is the slice of the document store the aggregator needs.
// Satisfied by *appwrite.Client; nil when no legacy store is configured.
type LegacyStore interface {
	ListDocuments(ctx context.Context, collection string, limit int) ([]appwrite.Document, int64, error)
}

// SourceFailureRecorder counts absorbed source failures. Satisfied by
// *metrics.Metrics; nil disables recording.
type SourceFailureRecorder interface {
	RecordSourceFailure(source string)
}

// Aggregator computes dashboard snapshots over the privileged repository and
// the legacy document store.
type Aggregator struct {
	repo             *database.Repository
	legacy           LegacyStore
	legacyCollection string
	logger           *logging.Logger
	recorder         SourceFailureRecorder
}

// NewAggregator creates an aggregator. legacy may be nil.
func NewAggregator(repo *database.Repository, legacy LegacyStore, legacyCollection string, logger *logging.Logger, recorder SourceFailureRecorder) *Aggregator {
	return &Aggregator{
		repo:             repo,
		legacy:           legacy,
		legacyCollection: legacyCollection,
		logger:           logger,
		recorder:         recorder,
	}
}

const legacyListLimit = 1000

// sourceResults holds each source's terminal value. One goroutine owns each
// field, so no lock is needed; the reduction runs after the join.
type sourceResults struct {
	usersCount    int64
	usersErr      error
	apps          []byte
	appsErr       error
	products      []byte
	productsErr   error
	orders        []byte
	ordersErr     error
	ratings       []byte
	ratingsErr    error
	contacts      []byte
	contactsErr   error
	packagesCount int64
	packagesErr   error
	bookings      []byte
	bookingsErr   error
	legacyDocs    []appwrite.Document
	legacyTotal   int64
	legacyErr     error
}

// ComputeSnapshot issues all source reads concurrently and reduces them. A
// failed source degrades its fields to zero; it is logged and counted but
// never fails the request. Completion order is irrelevant: the reduction
// depends only on each source's own terminal value.
func (a *Aggregator) ComputeSnapshot(ctx context.Context) Snapshot {
	var res sourceResults
	var wg sync.WaitGroup

	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	run(func() { res.usersCount, res.usersErr = a.repo.CountUsers(ctx) })
	run(func() { res.apps, res.appsErr = a.repo.Rows(ctx, "apps", "select=status,downloads") })
	run(func() { res.products, res.productsErr = a.repo.Rows(ctx, "products", "select=status") })
	run(func() { res.orders, res.ordersErr = a.repo.Rows(ctx, "orders", "select=status,total_amount") })
	run(func() { res.ratings, res.ratingsErr = a.repo.Rows(ctx, "product_ratings", "select=rating") })
	run(func() { res.contacts, res.contactsErr = a.repo.Rows(ctx, "contact_messages", "select=status") })
	run(func() { res.packagesCount, res.packagesErr = a.repo.CountDrivingPackages(ctx) })
	run(func() { res.bookings, res.bookingsErr = a.repo.Rows(ctx, "driving_school_bookings", "select=status") })
	if a.legacy != nil {
		run(func() {
			res.legacyDocs, res.legacyTotal, res.legacyErr = a.legacy.ListDocuments(ctx, a.legacyCollection, legacyListLimit)
		})
	}
	wg.Wait()

	return a.reduce(ctx, &res)
}

func (a *Aggregator) reduce(ctx context.Context, res *sourceResults) Snapshot {
	var snap Snapshot

	if a.absorb(ctx, "users", res.usersErr) {
		snap.TotalUsers = res.usersCount
	}

	if a.absorb(ctx, "apps", res.appsErr) {
		rows := gjson.ParseBytes(res.apps)
		snap.TotalApps = countRows(rows)
		snap.PendingApps = countWhere(rows, "status", database.AppStatusPending)
		snap.TotalDownloads = sumInt(rows, "downloads")
	}

	if a.absorb(ctx, "products", res.productsErr) {
		rows := gjson.ParseBytes(res.products)
		snap.TotalProducts = countRows(rows)
		snap.PendingProducts = countWhere(rows, "status", database.ProductStatusPending)
	}

	if a.absorb(ctx, "orders", res.ordersErr) {
		rows := gjson.ParseBytes(res.orders)
		snap.TotalOrders = countRows(rows)
		snap.PendingOrders = countWhere(rows, "status", database.OrderStatusPending)
		snap.TotalOrderValue = sumFloat(rows, "total_amount")
	}

	if a.absorb(ctx, "ratings", res.ratingsErr) {
		rows := gjson.ParseBytes(res.ratings)
		snap.TotalRatings = countRows(rows)
		if snap.TotalRatings > 0 {
			snap.AverageRating = sumFloat(rows, "rating") / float64(snap.TotalRatings)
		}
	}

	if a.absorb(ctx, "contacts", res.contactsErr) {
		rows := gjson.ParseBytes(res.contacts)
		snap.TotalContacts = countRows(rows)
		snap.NewContacts = countWhere(rows, "status", database.ContactStatusNew)
	}

	if a.absorb(ctx, "packages", res.packagesErr) {
		snap.DrivingSchoolPackages = res.packagesCount
	}

	if a.absorb(ctx, "bookings", res.bookingsErr) {
		rows := gjson.ParseBytes(res.bookings)
		snap.DrivingSchoolBookings = countRows(rows)
		snap.DrivingSchoolPendingBookings = countWhere(rows, "status", database.BookingStatusPending)
	}

	// Unmigrated submissions in the legacy store still count as apps. The
	// total is the store's own collection count; the pending scan only sees
	// the documents the capped listing returned.
	if a.legacy != nil && a.absorb(ctx, "legacy_apps", res.legacyErr) {
		snap.TotalApps += res.legacyTotal
		for _, doc := range res.legacyDocs {
			if doc.Status == database.AppStatusPending {
				snap.PendingApps++
			}
		}
	}

	return snap
}

// absorb reports whether a source succeeded. Failures are logged and counted
// here, and nowhere surfaced: a partial dashboard beats a broken one.
func (a *Aggregator) absorb(ctx context.Context, source string, err error) bool {
	if err == nil {
		return true
	}
	if a.logger != nil {
		a.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"source": source,
		}).Warn("stats source failed, defaulting to zero")
	}
	if a.recorder != nil {
		a.recorder.RecordSourceFailure(source)
	}
	return false
}

func countRows(rows gjson.Result) int64 {
	var n int64
	rows.ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	return n
}

func countWhere(rows gjson.Result, field, value string) int64 {
	var n int64
	rows.ForEach(func(_, row gjson.Result) bool {
		if row.Get(field).String() == value {
			n++
		}
		return true
	})
	return n
}

// sumInt totals an integer column, treating missing values as 0.
func sumInt(rows gjson.Result, field string) int64 {
	var total int64
	rows.ForEach(func(_, row gjson.Result) bool {
		total += row.Get(field).Int()
		return true
	})
	return total
}

// sumFloat totals a numeric column. gjson coerces numeric strings and treats
// anything non-numeric as 0, which is exactly the tolerance the dashboard
// needs for historical rows with bad amounts.
func sumFloat(rows gjson.Result, field string) float64 {
	var total float64
	rows.ForEach(func(_, row gjson.Result) bool {
		total += row.Get(field).Float()
		return true
	})
	return total
}
