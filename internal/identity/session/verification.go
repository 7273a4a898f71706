package session

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/facematch"
)

// Enrolled is the read side of the enrollment manager.
type Enrolled interface {
	Lookup(id entity.Identity) (entity.EnrolledRecord, bool)
	Candidates() []facematch.Candidate[entity.Identity]
}

// VerificationConfig tunes a Verification.
//
// With StrictNearest the claimed identity must also be the nearest of all
// enrolled identities, so a face that sits between two records is rejected.
type VerificationConfig struct {
	Threshold     float64
	Deadline      time.Duration
	StrictNearest bool
}

// Verification matches live frames against one claimed identity.
type Verification struct {
	claimed   entity.Identity
	enrolled  Enrolled
	extractor Extractor
	cfg       VerificationConfig
	startedAt time.Time
	deadline  time.Time

	mu        sync.Mutex
	status    entity.SessionStatus
	ticks     int
	last      entity.MatchResult
	hasResult bool
}

// NewVerification starts a session in Verifying. The caller must already have
// checked the one-time code.
func NewVerification(claimed entity.Identity, now time.Time, cfg VerificationConfig, enrolled Enrolled, extractor Extractor) *Verification {
	return &Verification{
		claimed:   claimed,
		enrolled:  enrolled,
		extractor: extractor,
		cfg:       cfg,
		startedAt: now,
		deadline:  now.Add(cfg.Deadline),
		status:    entity.SessionStatusVerifying,
	}
}

// Tick runs one evaluation step.
//
// A terminal session returns its frozen status and nil. The tick that first
// observes now >= deadline returns TimedOut with entity.ErrVerificationTimedOut.
// Frame and extractor failures leave the session Verifying and are returned.
func (v *Verification) Tick(ctx context.Context, now time.Time, frames FrameSource) (entity.SessionStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status.IsTerminal() {
		return v.status, nil
	}

	if !now.Before(v.deadline) {
		v.status = entity.SessionStatusTimedOut
		return v.status, entity.ErrVerificationTimedOut
	}

	v.ticks++

	img, ok, err := frames.NextFrame(ctx)
	if err != nil {
		return v.status, err
	}
	if !ok || img == nil {
		return v.status, nil
	}

	dets, err := v.extractor.DetectAndEncode(ctx, img)
	if err != nil {
		return v.status, err
	}
	if len(dets) == 0 {
		return v.status, nil
	}

	rec, ok := v.enrolled.Lookup(v.claimed)
	if !ok {
		return v.status, entity.ErrNotFound
	}

	own := []facematch.Candidate[entity.Identity]{{Label: v.claimed, Encoding: rec.Encoding}}

	var all []facematch.Candidate[entity.Identity]
	if v.cfg.StrictNearest {
		all = v.enrolled.Candidates()
	}

	for _, det := range dets {
		res := facematch.Evaluate(det.Encoding, own, v.cfg.Threshold)
		if !v.hasResult || res.Distance < v.last.Distance {
			v.last, v.hasResult = res, true
		}
		if !res.Accepted {
			continue
		}

		if v.cfg.StrictNearest {
			if nearest := facematch.Evaluate(det.Encoding, all, v.cfg.Threshold); nearest.Label != v.claimed {
				continue
			}
		}

		v.last = res
		v.status = entity.SessionStatusAccepted
		return v.status, nil
	}

	return v.status, nil
}

// Abort cancels the session unless it already finished and returns the
// resulting status.
func (v *Verification) Abort() entity.SessionStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.status.IsTerminal() {
		v.status = entity.SessionStatusAborted
	}
	return v.status
}

func (v *Verification) Status() entity.SessionStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.status
}

// Ticks counts the evaluation steps that ran before a terminal state.
func (v *Verification) Ticks() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.ticks
}

// LastResult is the closest match to the claimed identity seen so far.
func (v *Verification) LastResult() (entity.MatchResult, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.last, v.hasResult
}

func (v *Verification) Claimed() entity.Identity { return v.claimed }

func (v *Verification) StartedAt() time.Time { return v.startedAt }

func (v *Verification) Deadline() time.Time { return v.deadline }
