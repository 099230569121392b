// Package render dispatches compositions to the remote render service and
// reports normalized progress. Jobs live remotely; callers poll.
package render

import (
	"context"
	"strings"
	"time"

	"lectern/internal/compositions"
	"lectern/internal/models"
	"lectern/internal/pkg/errors"
	"lectern/internal/pkg/logger"
	"lectern/internal/ports"
)

// Target is the serverless deployment a render runs on.
type Target = ports.RenderTarget

type RenderJob struct {
	ID            string         `json:"id"`
	CompositionID string         `json:"composition_id"`
	InputProps    map[string]any `json:"input_props"`
	ServeURL      string         `json:"serve_url"`
	Target        Target         `json:"target"`
	CreatedAt     time.Time      `json:"created_at"`
}

// BundleSource resolves the bundle a render is dispatched against.
type BundleSource interface {
	Resolve(ctx context.Context) (compositions.Bundle, error)
}

// Journal records dispatched renders.
type Journal interface {
	RecordRender(ctx context.Context, rec models.RenderRecord) error
}

type Deps struct {
	Service ports.RenderService
	Bundles BundleSource
	// Journal is optional.
	Journal Journal
	// Defaults fill in target fields the caller leaves empty.
	Defaults Target
	Log      *logger.Logger
	Now      func() time.Time
}

type Dispatcher struct {
	svc      ports.RenderService
	bundles  BundleSource
	journal  Journal
	defaults Target
	log      *logger.Logger
	now      func() time.Time
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Dispatcher{
		svc:      d.Service,
		bundles:  d.Bundles,
		journal:  d.Journal,
		defaults: d.Defaults,
		log:      d.Log.WithComponent("render"),
		now:      d.Now,
	}
}

// ResolveTarget fills empty fields of t from the configured defaults.
func (d *Dispatcher) ResolveTarget(t Target) Target {
	t.Region = firstNonEmpty(t.Region, d.defaults.Region)
	t.Function = firstNonEmpty(t.Function, d.defaults.Function)
	t.Bucket = firstNonEmpty(t.Bucket, d.defaults.Bucket)
	return t
}

// Dispatch bundles the project and starts a render of compositionID. The
// target is checked before the bundle is built.
func (d *Dispatcher) Dispatch(ctx context.Context, compositionID string, inputProps map[string]any, target Target) (RenderJob, error) {
	if err := validateComposition(compositionID); err != nil {
		return RenderJob{}, err
	}
	target, err := d.readyTarget(target)
	if err != nil {
		return RenderJob{}, err
	}
	if d.bundles == nil {
		return RenderJob{}, errors.Config("bundler.service_url", "bundler is not configured")
	}
	bundle, err := d.bundles.Resolve(ctx)
	if err != nil {
		return RenderJob{}, err
	}
	return d.DispatchBundle(ctx, bundle, compositionID, inputProps, target)
}

// DispatchBundle starts a render against an already resolved bundle. A
// composition the bundle does not declare is rejected before any remote
// call. The start request is never retried.
func (d *Dispatcher) DispatchBundle(ctx context.Context, bundle compositions.Bundle, compositionID string, inputProps map[string]any, target Target) (RenderJob, error) {
	if err := validateComposition(compositionID); err != nil {
		return RenderJob{}, err
	}
	if len(bundle.Compositions) > 0 && !bundle.Has(compositionID) {
		return RenderJob{}, errors.ValidationField("composition_id", "unknown composition "+compositionID)
	}
	target, err := d.readyTarget(target)
	if err != nil {
		return RenderJob{}, err
	}
	if inputProps == nil {
		inputProps = map[string]any{}
	}

	out, err := d.svc.StartRender(ctx, ports.StartRenderInput{
		ServeURL:      bundle.ServeURL,
		CompositionID: compositionID,
		InputProps:    inputProps,
		Target:        target,
	})
	if err != nil {
		return RenderJob{}, dispatchErr(err, errors.CodeDispatch, "render.dispatch", "start render failed")
	}
	if out.BucketName != "" {
		target.Bucket = out.BucketName
	}

	job := RenderJob{
		ID:            out.RenderID,
		CompositionID: compositionID,
		InputProps:    inputProps,
		ServeURL:      bundle.ServeURL,
		Target:        target,
		CreatedAt:     d.now().UTC(),
	}

	log := d.log.FromContext(ctx).WithRenderID(job.ID)
	log.Info("render dispatched", "composition_id", compositionID, "function", target.Function, "bucket", target.Bucket)

	if d.journal != nil {
		if err := d.journal.RecordRender(ctx, job.Record()); err != nil {
			log.Warn("failed to record render", "error", err)
		}
	}
	return job, nil
}

// PollProgress asks the render service once for the job's progress. A
// fatal render is a successful result; only a failed query is an error.
func (d *Dispatcher) PollProgress(ctx context.Context, renderID string, target Target) (Progress, error) {
	renderID = strings.TrimSpace(renderID)
	if renderID == "" {
		return Progress{}, errors.ValidationField("render_id", "render id is required")
	}
	if d.svc == nil {
		return Progress{}, errors.Config("render.service_url", "render service is not configured")
	}

	target = d.ResolveTarget(target)
	remote, err := d.svc.RenderProgress(ctx, renderID, target)
	if err != nil {
		return Progress{}, dispatchErr(err, errors.CodeProgressQuery, "render.progress", "progress query failed").
			WithField("render_id", renderID)
	}
	return Normalize(remote), nil
}

// Record converts the job into its ledger form.
func (j RenderJob) Record() models.RenderRecord {
	return models.RenderRecord{
		ID:            j.ID,
		CompositionID: j.CompositionID,
		InputProps:    j.InputProps,
		ServeURL:      j.ServeURL,
		Region:        j.Target.Region,
		Function:      j.Target.Function,
		Bucket:        j.Target.Bucket,
		CreatedAt:     j.CreatedAt,
	}
}

// readyTarget fills target defaults and rejects a target the render service
// cannot run.
func (d *Dispatcher) readyTarget(t Target) (Target, error) {
	if d.svc == nil {
		return t, errors.Config("render.service_url", "render service is not configured")
	}
	t = d.ResolveTarget(t)
	if t.Bucket == "" {
		return t, errors.New(errors.CodeDispatch, "render target bucket is required").WithField("field", "bucket")
	}
	if t.Function == "" {
		return t, errors.New(errors.CodeDispatch, "render target function is required").WithField("field", "function")
	}
	return t, nil
}

func validateComposition(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.ValidationField("composition_id", "composition id is required")
	}
	return nil
}

func dispatchErr(err error, code errors.Code, op, msg string) *errors.Error {
	var e *errors.Error
	if errors.As(err, &e) && (e.Code == errors.CodeConfig || e.Code == code) {
		return e
	}
	return errors.WrapWithCode(err, code, op, msg+": "+err.Error())
}

func firstNonEmpty(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}
