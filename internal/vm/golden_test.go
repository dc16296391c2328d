package vm

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestRuntimeErrorReportGolden pins the exact text a CLI or REPL prints
// for a failing script: the message, then one "[line N] in fn()" frame
// per active call, innermost first. This is the one piece of Raven's
// output formatting that is plain fmt.Sprintf (no third-party table or
// terminal library underneath it), so its bytes are worth freezing.
func TestRuntimeErrorReportGolden(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	v := New(Config{Log: log})

	_, rerr, errs := v.Interpret(`
func boom() { 1 / 0 }
boom();
`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)

	g := goldie.New(t)
	g.Assert(t, "runtime-error-report", []byte(rerr.Report()))
}
