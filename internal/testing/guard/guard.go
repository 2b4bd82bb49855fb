package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LZAPP_TEST_MODE") == "" {
			_ = os.Setenv("LZAPP_TEST_MODE", "1")
		}
	})
}
