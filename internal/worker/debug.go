package worker

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("PROMPTCOACH_WORKER_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if workerDebugEnabled {
		logrus.Infof(format, args...)
	}
}
