package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("COVENANT_TEST_MODE") == "" {
			_ = os.Setenv("COVENANT_TEST_MODE", "1")
		}
	})
}
