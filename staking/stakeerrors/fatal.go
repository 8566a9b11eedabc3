package stakeerrors

import (
	"github.com/sirupsen/logrus"
)

// Fatal logs err at Fatal level through the given component-scoped entry and
// terminates the process, the same way go-opera's cmd binaries treat a
// corrupt-state error coming out of the integration package: there is no
// sensible deliver_tx or BeginBlock to resume from once one of these fires.
func Fatal(log *logrus.Entry, err error) {
	log.WithError(err).Fatal("staking core halted")
}

// ComponentLogger returns a *logrus.Entry scoped to a single component name,
// the same WithField convention used throughout go-opera's logging.
func ComponentLogger(log *logrus.Logger, component string) *logrus.Entry {
	return log.WithField("component", component)
}
