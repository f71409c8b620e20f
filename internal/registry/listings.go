package registry

import (
	"context"

	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
)

const (
	latestWindow  = 31
	winnersWindow = 200
)

// Winners lists recent completed tournaments of a variant that have a winner.
func (r *Registry) Winners(ctx context.Context, variantCode string, limit int) ([]storage.TournamentRecord, error) {
	recs, err := r.store.ListTournaments(ctx, storage.TournamentQuery{
		Statuses: []int{int(tournament.Finished), int(tournament.Archived)},
		Limit:    winnersWindow,
	})
	if err != nil {
		return nil, err
	}
	var out []storage.TournamentRecord
	for _, rec := range recs {
		if rec.Variant != variantCode || rec.Winner == "" {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Scheduled lists the live recurring tournaments created by SystemAccount.
func (r *Registry) Scheduled(ctx context.Context, max int) ([]storage.TournamentRecord, error) {
	recs, err := r.store.ListTournaments(ctx, storage.TournamentQuery{
		Statuses: []int{int(tournament.Created), int(tournament.Started)},
	})
	if err != nil {
		return nil, err
	}
	var out []storage.TournamentRecord
	for _, rec := range recs {
		if rec.Frequency == "" || rec.CreatedBy != SystemAccount {
			continue
		}
		out = append(out, rec)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

type Latest struct {
	Started   []storage.TournamentRecord
	Scheduled []storage.TournamentRecord
	Completed []storage.TournamentRecord
}

// LatestTournaments splits the most recent tournaments by where they are
// in their lifecycle. Aborted ones are left out.
func (r *Registry) LatestTournaments(ctx context.Context) (Latest, error) {
	recs, err := r.store.ListTournaments(ctx, storage.TournamentQuery{Limit: latestWindow})
	if err != nil {
		return Latest{}, err
	}
	var out Latest
	for _, rec := range recs {
		switch tournament.Status(rec.Status) {
		case tournament.Started:
			out.Started = append(out.Started, rec)
		case tournament.Created:
			out.Scheduled = append(out.Scheduled, rec)
		case tournament.Finished, tournament.Archived:
			out.Completed = append(out.Completed, rec)
		}
	}
	return out, nil
}
