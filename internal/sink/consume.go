package sink

import (
	"log"
	"sync"

	"TwinGuard/internal/model"
)

// Consume drains a broadcaster subscription into a writer until the channel
// closes. Write failures are logged and skipped so one bad sink never backs
// up into the scoring path. The returned WaitGroup add is balanced when the
// loop exits.
func Consume(wg *sync.WaitGroup, name string, ch <-chan model.VerdictRecord, w model.VerdictWriter) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for rec := range ch {
			if err := w.Write(rec); err != nil {
				log.Printf("Verdict sink %q write failed: %v", name, err)
			}
		}
		if err := w.Close(); err != nil {
			log.Printf("Verdict sink %q close failed: %v", name, err)
		}
	}()
}
