package ice

import "github.com/lanikai/ice/internal/logging"

// log is the package-scoped logger for the ice package itself. Subsystems in
// internal/ packages derive their own tagged logger with WithTag so that
// ICE_LOGLEVEL=ice=9,stun=1 can tune them independently.
var log = logging.DefaultLogger.WithTag("ice")
