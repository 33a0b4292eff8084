// Package event carries matchmaking results from background sessions to the
// single-threaded caller that polls for them.
package event

type (
	// Result is the terminal outcome of one matchmaking attempt. The only
	// implementations are MatchFound and NetworkError.
	Result interface {
		// Attempt returns the ticket of the attempt that produced the result.
		Attempt() string
		result()
	}
	// MatchFound reports that the server paired the player with an opponent.
	MatchFound struct {
		Ticket           string
		OpponentID       string
		OpponentTrophies int32
		RoomID           string
	}
	// NetworkError reports that the attempt failed. Message is meant for
	// logs and UI; Err, when set, wraps the failure class.
	NetworkError struct {
		Ticket  string
		Message string
		Err     error
	}
	// Sink accepts results from producers. Send is best effort: it never
	// blocks on the consumer and reports false when the result was dropped
	// because nobody is listening anymore.
	Sink interface {
		Send(Result) bool
	}
)

// Attempt implements Result.
func (m MatchFound) Attempt() string { return m.Ticket }

func (MatchFound) result() {}

// Attempt implements Result.
func (e NetworkError) Attempt() string { return e.Ticket }

func (NetworkError) result() {}

// Error implements error.
func (e NetworkError) Error() string { return e.Message }

// Unwrap returns the failure class.
func (e NetworkError) Unwrap() error { return e.Err }

var (
	_ Result = MatchFound{}
	_ Result = NetworkError{}
	_ error  = NetworkError{}
)
