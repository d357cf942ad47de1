package autopilot

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// TailoringTask is the tailoring started by a run. In background mode it may
// still be running when Run returns; the tailored resume lands in the session
// when it finishes.
type TailoringTask struct {
	done   chan struct{}
	resume *tailoring.TailoredResume
	err    error
}

type tailorJob struct {
	tailor       Tailorer
	session      *session.Session
	jd           *types.JobDescription
	resumeText   string
	instructions string
	logger       *zap.Logger
}

func startTailoring(ctx context.Context, job tailorJob) *TailoringTask {
	task := &TailoringTask{done: make(chan struct{})}

	var g errgroup.Group
	g.Go(func() error {
		r, err := job.tailor.Run(ctx, job.resumeText, job.jd, job.instructions)
		if err != nil {
			return err
		}
		task.resume = r
		if !job.session.SetResumeFor(job.jd, r) {
			job.logger.Info("job description changed while tailoring, resume not kept in session")
		}
		return nil
	})

	go func() {
		task.err = g.Wait()
		if task.err != nil {
			job.logger.Warn("tailoring failed", zap.Error(task.err))
		}
		close(task.done)
	}()
	return task
}

// Done is closed once tailoring has finished.
func (t *TailoringTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until tailoring finishes or ctx is done. Cancelling ctx does
// not stop the tailoring itself.
func (t *TailoringTask) Wait(ctx context.Context) (*tailoring.TailoredResume, error) {
	select {
	case <-t.done:
		return t.resume, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
