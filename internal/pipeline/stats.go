package pipeline

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ratioHistorySize bounds the mouth-ratio sample window used for the
// quantile summary. 300 samples is ten seconds at the nominal frame rate.
const ratioHistorySize = 300

// calibrationMinSamples is the minimum window fill before the stats offer a
// threshold suggestion; below this the quantiles are too jumpy to trust.
const calibrationMinSamples = 30

// calibrationMargin lifts the suggested open threshold above the observed
// p90 so normal closed-mouth noise stays under it.
const calibrationMargin = 1.25

// FrameStats tracks per-frame pipeline counters with thread-safe operations.
// The frame loop is the only writer; the HTTP API and the periodic rate
// logger read concurrently.
type FrameStats struct {
	mu               sync.Mutex
	frameCount       int64
	detectionCount   int64
	missCount        int64
	invalidCount     int64
	detectorErrCount int64
	moveCount        int64
	clickCount       int64
	lastReset        time.Time

	// ratios is a bounded ring of recent mouth-ratio samples. Unlike the
	// counters it is never reset by rate logging.
	ratios    [ratioHistorySize]float64
	ratioLen  int
	ratioNext int

	// Lifetime totals, unaffected by GetAndReset. Interval counters fold
	// into the arch* accumulators on reset so Snapshot stays lifetime.
	totalFrames      int64
	totalMoves       int64
	totalClicks      int64
	archDetections   int64
	archMisses       int64
	archInvalid      int64
	archDetectorErrs int64
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats() *FrameStats {
	return &FrameStats{lastReset: time.Now()}
}

// AddFrame counts one acquired frame.
func (fs *FrameStats) AddFrame() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frameCount++
	fs.totalFrames++
}

// AddDetection counts a frame with a valid landmark sequence and records
// its mouth ratio in the calibration window.
func (fs *FrameStats) AddDetection(mouthRatio float64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.detectionCount++
	fs.ratios[fs.ratioNext] = mouthRatio
	fs.ratioNext = (fs.ratioNext + 1) % ratioHistorySize
	if fs.ratioLen < ratioHistorySize {
		fs.ratioLen++
	}
}

// AddMiss counts a frame with no detected face.
func (fs *FrameStats) AddMiss() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.missCount++
}

// AddInvalidSequence counts a frame whose landmark sequence had the wrong
// point count.
func (fs *FrameStats) AddInvalidSequence() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.invalidCount++
}

// AddDetectorError counts a detector call that returned an error.
func (fs *FrameStats) AddDetectorError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.detectorErrCount++
}

// AddMove counts an emitted move message.
func (fs *FrameStats) AddMove() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.moveCount++
	fs.totalMoves++
}

// AddClick counts an emitted click message.
func (fs *FrameStats) AddClick() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.clickCount++
	fs.totalClicks++
}

// RatioSummary describes the recent mouth-ratio distribution. Quantiles are
// zero when the window has no samples.
type RatioSummary struct {
	Samples int     `json:"samples"`
	P50     float64 `json:"p50"`
	P90     float64 `json:"p90"`
	P99     float64 `json:"p99"`

	// SuggestedOpenThresh is a calibration hint derived from the p90 of the
	// window. Zero when the window is too small to suggest anything.
	SuggestedOpenThresh float64 `json:"suggested_open_thresh,omitempty"`
}

// Snapshot is a point-in-time copy of the lifetime counters for the API.
type Snapshot struct {
	Frames         int64        `json:"frames"`
	Detections     int64        `json:"detections"`
	Misses         int64        `json:"misses"`
	InvalidSeqs    int64        `json:"invalid_sequences"`
	DetectorErrors int64        `json:"detector_errors"`
	Moves          int64        `json:"moves"`
	Clicks         int64        `json:"clicks"`
	MouthRatio     RatioSummary `json:"mouth_ratio"`
}

// Snapshot returns the lifetime counters and the current ratio summary.
func (fs *FrameStats) Snapshot() Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return Snapshot{
		Frames:         fs.totalFrames,
		Detections:     fs.detectionCount + fs.archDetections,
		Misses:         fs.missCount + fs.archMisses,
		InvalidSeqs:    fs.invalidCount + fs.archInvalid,
		DetectorErrors: fs.detectorErrCount + fs.archDetectorErrs,
		Moves:          fs.totalMoves,
		Clicks:         fs.totalClicks,
		MouthRatio:     fs.ratioSummaryLocked(),
	}
}

// ratioSummaryLocked computes quantiles over a sorted copy of the ratio
// window. Caller holds mu.
func (fs *FrameStats) ratioSummaryLocked() RatioSummary {
	s := RatioSummary{Samples: fs.ratioLen}
	if fs.ratioLen == 0 {
		return s
	}

	sorted := make([]float64, fs.ratioLen)
	copy(sorted, fs.ratios[:fs.ratioLen])
	sort.Float64s(sorted)

	s.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	if fs.ratioLen >= calibrationMinSamples {
		s.SuggestedOpenThresh = s.P90 * calibrationMargin
	}
	return s
}

// GetAndReset returns the interval counters and resets them, folding the
// interval into the lifetime archives.
func (fs *FrameStats) GetAndReset() (frames, detections, misses, invalid, detectorErrs, moves, clicks int64, duration time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	duration = now.Sub(fs.lastReset)
	frames = fs.frameCount
	detections = fs.detectionCount
	misses = fs.missCount
	invalid = fs.invalidCount
	detectorErrs = fs.detectorErrCount
	moves = fs.moveCount
	clicks = fs.clickCount

	fs.archDetections += fs.detectionCount
	fs.archMisses += fs.missCount
	fs.archInvalid += fs.invalidCount
	fs.archDetectorErrs += fs.detectorErrCount

	fs.frameCount = 0
	fs.detectionCount = 0
	fs.missCount = 0
	fs.invalidCount = 0
	fs.detectorErrCount = 0
	fs.moveCount = 0
	fs.clickCount = 0
	fs.lastReset = now

	return
}

// LogRates logs interval rates to the diag stream and resets the interval
// counters. Quiet intervals (no frames) log nothing.
func (fs *FrameStats) LogRates() {
	frames, detections, _, invalid, detectorErrs, moves, clicks, duration := fs.GetAndReset()
	if frames == 0 || duration <= 0 {
		return
	}

	fps := float64(frames) / duration.Seconds()
	detectPct := 100 * float64(detections) / float64(frames)
	diagf("frame stats: %.1f fps, %.0f%% detected, %d moves, %d clicks", fps, detectPct, moves, clicks)

	if invalid > 0 || detectorErrs > 0 {
		opsf("detector problems: %d invalid sequences, %d errors in %s", invalid, detectorErrs, duration.Round(time.Second))
	}
}
