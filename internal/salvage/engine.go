package salvage

import (
	"errors"
	"fmt"

	"github.com/samcharles93/salvor/internal/bufview"
	"github.com/samcharles93/salvor/internal/logger"
	"github.com/samcharles93/salvor/internal/sniff"
)

// ErrNoGeometry reports that every strategy ran and nothing survived
// finalization. Callers should treat it as "this buffer holds no mesh we
// can see", not as a fault.
var ErrNoGeometry = errors.New("no recoverable geometry")

// Stage names reported through ProgressFunc, in cascade order.
const (
	StageHeader   = "header"
	StageBlock    = "block"
	StagePattern  = "pattern"
	StageStride   = "stride"
	StageFinalize = "finalize"
)

// ProgressEvent marks one cascade milestone.
type ProgressEvent struct {
	Stage   string
	Skipped bool
}

// ProgressFunc receives cascade milestones on the calling goroutine; keep
// implementations cheap.
type ProgressFunc func(ProgressEvent)

// Options configures a recovery run. The zero value is usable: default
// tunables, no logging, no progress reporting.
type Options struct {
	Tunables Tunables
	Logger   logger.Logger
	Progress ProgressFunc
}

// StrategyReport records what one strategy did during a run.
type StrategyReport struct {
	Name       string
	Skipped    bool
	Candidates int
	Vertices   int

	// Fault carries the recovered panic message when a strategy blew up
	// on hostile input. The run itself continues with the next strategy.
	Fault string
}

// Result is a completed recovery run.
type Result struct {
	Header     sniff.Header
	Candidates []Candidate
	Strategies []StrategyReport
}

// TotalVertices sums the vertex counts of all finalized candidates.
func (r *Result) TotalVertices() int {
	n := 0
	for i := range r.Candidates {
		n += r.Candidates[i].VertexCount()
	}
	return n
}

type stage struct {
	name string
	run  func() []Candidate
}

// Recover runs the salvage cascade over data and returns the finalized
// candidates. Strategies run cheapest-first and later ones are skipped once
// the accumulated vertex count clears the viability bar; a strategy that
// panics is reported and the cascade moves on. The buffer is never written.
func Recover(data []byte, opts Options) (*Result, error) {
	tun := opts.Tunables
	if tun == (Tunables{}) {
		tun = DefaultTunables()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	hdr := sniff.Sniff(data)
	emit(opts.Progress, ProgressEvent{Stage: StageHeader})
	if hdr.Variant == sniff.VariantUnknown {
		log.Debug("unrecognised container, assuming default byte mode", "bytes", len(data))
	} else {
		log.Debug("sniffed container header",
			"variant", string(hdr.Variant),
			"version", hdr.Version,
			"littleEndian", hdr.Mode.LittleEndian,
			"wordSize", hdr.Mode.WordSize)
	}

	src := bufview.New(data, hdr.Mode)
	stages := []stage{
		{StageBlock, func() []Candidate { return blockScan(src, hdr, &tun) }},
		{StagePattern, func() []Candidate { return patternScan(src, &tun) }},
		{StageStride, func() []Candidate { return strideScan(src, &tun) }},
	}

	var (
		raw     []Candidate
		total   int
		reports = make([]StrategyReport, 0, len(stages))
	)
	for _, st := range stages {
		if total >= tun.MinViableVertices {
			emit(opts.Progress, ProgressEvent{Stage: st.name, Skipped: true})
			reports = append(reports, StrategyReport{Name: st.name, Skipped: true})
			log.Debug("strategy skipped", "strategy", st.name, "verticesSoFar", total)
			continue
		}
		emit(opts.Progress, ProgressEvent{Stage: st.name})
		cands, fault := runShielded(st.run)
		verts := 0
		for i := range cands {
			verts += cands[i].VertexCount()
		}
		if fault != "" {
			log.Warn("strategy panicked on hostile input", "strategy", st.name, "fault", fault)
		}
		log.Debug("strategy finished", "strategy", st.name, "candidates", len(cands), "vertices", verts)
		reports = append(reports, StrategyReport{
			Name:       st.name,
			Candidates: len(cands),
			Vertices:   verts,
			Fault:      fault,
		})
		raw = append(raw, cands...)
		total += verts
	}

	emit(opts.Progress, ProgressEvent{Stage: StageFinalize})
	final := finalizeCandidates(raw, &tun)
	if len(final) == 0 {
		return nil, fmt.Errorf(
			"scanned %d bytes: %w (likely an unsupported format version, non-numeric geometry storage, or truncation; try re-exporting to a standard interchange format)",
			len(data), ErrNoGeometry)
	}

	res := &Result{Header: hdr, Candidates: final, Strategies: reports}
	log.Info("recovery complete", "candidates", len(final), "vertices", res.TotalVertices())
	return res, nil
}

// runShielded executes one strategy with a panic shield. Hostile inputs are
// the normal case for this engine; a strategy tripping over one must not
// take down the run.
func runShielded(fn func() []Candidate) (cands []Candidate, fault string) {
	defer func() {
		if rec := recover(); rec != nil {
			cands = nil
			fault = fmt.Sprint(rec)
		}
	}()
	return fn(), ""
}

func emit(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}
