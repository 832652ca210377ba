package replay

import (
	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
)

// UserFlags is the derived account state folded from password_reset,
// user_age_verified, and user_tos_accepted events on the main log.
type UserFlags struct {
	UserID          string
	PasswordResetAt int64
	AgeVerifiedAt   int64
	TOSAccepted     bool
	TOSVersion      string
	TOSAcceptedAtMs int64
}

// Flags replays the main log and folds every password_reset/
// user_age_verified/user_tos_accepted event addressed to userID into a
// UserFlags projection.
func Flags(log *eventlog.EventLog, userID string, stats *Stats) (UserFlags, error) {
	f := UserFlags{UserID: userID}
	err := log.Load(eventlog.Main(), func(env events.Envelope) error {
		if stats != nil {
			stats.noteKind(env.Type)
		}
		switch env.Type {
		case events.PasswordReset:
			var d events.PasswordResetPayload
			if err := env.Decode(&d); err != nil {
				return err
			}
			if d.UserID == userID {
				f.PasswordResetAt = d.ResetAtMs
			}
		case events.UserAgeVerified:
			var d events.UserAgeVerifiedPayload
			if err := env.Decode(&d); err != nil {
				return err
			}
			if d.UserID == userID {
				f.AgeVerifiedAt = d.VerifiedAtMs
			}
		case events.UserTOSAccepted:
			var d events.UserTOSAcceptedPayload
			if err := env.Decode(&d); err != nil {
				return err
			}
			if d.UserID == userID {
				f.TOSAccepted = true
				f.TOSVersion = d.TOSVersion
				f.TOSAcceptedAtMs = d.AcceptedMs
			}
		}
		return nil
	})
	if err != nil {
		return UserFlags{}, errs.Wrap(err, errs.Internal, "replay user flags "+userID)
	}
	return f, nil
}
