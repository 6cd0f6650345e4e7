package process

// Result is the outcome of one completed process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Results maps process ids to their results. It only grows during a call.
type Results map[string]Result

// add records a result. An id is reported at most once per pool, so a
// second add for the same id is ignored.
func (r Results) add(id string, res Result) {
	if _, ok := r[id]; ok {
		return
	}
	r[id] = res
}
