package traverse

// Stage names the pipeline step an event was emitted from. Within one
// revision, events are emitted in the order fetch, materialize, analyze,
// aggregate, cleanup.
type Stage string

const (
	StageEnumerate   Stage = "enumerate"
	StageFetch       Stage = "fetch"
	StageMaterialize Stage = "materialize"
	StageAnalyze     Stage = "analyze"
	StageAggregate   Stage = "aggregate"
	StageCleanup     Stage = "cleanup"
	StageVerify      Stage = "verify"
)

// Event is a one-way, fire-and-forget progress message. Current and Total
// are zero when no counters apply.
type Event struct {
	Stage    Stage
	Revision string
	Message  string
	Warning  bool
	Current  int
	Total    int
}

// ProgressFunc receives progress events. It is called from the traversal
// worker; implementations that may block should go through NewEventChannel
// instead of blocking the worker.
type ProgressFunc func(Event)

// NewEventChannel adapts a bounded one-way channel to a ProgressFunc. The
// worker side never blocks: when the buffer is full, the event is dropped.
// A single consumer drains the channel; the returned stop function closes it
// and must be called only after the traversal has returned.
func NewEventChannel(size int) (ProgressFunc, <-chan Event, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Event, size)
	emit := func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}
	stop := func() { close(ch) }
	return emit, ch, stop
}
