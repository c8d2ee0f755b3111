package appointments

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// ChangeFeed carries appointment change notifications over Redis pub/sub.
// Writers publish after every mutation; each session's refresher subscribes
// to the three channels for its identity.
type ChangeFeed struct {
	client *redis.Client
	logger *logging.Logger
}

func NewChangeFeed(client *redis.Client, logger *logging.Logger) *ChangeFeed {
	if client == nil {
		panic("appointments: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChangeFeed{client: client, logger: logger}
}

// LegacyChannel is the stream of legacy-collection changes for a user.
func LegacyChannel(userID string) string {
	return "appointments:legacy:" + userID
}

// GlobalPatientChannel is the stream of global-collection changes keyed by
// patientId.
func GlobalPatientChannel(patientID string) string {
	return "appointments:global:patient:" + patientID
}

// GlobalUIDChannel is the stream of global-collection changes keyed by
// patientUid.
func GlobalUIDChannel(patientUID string) string {
	return "appointments:global:uid:" + patientUID
}

// ChannelsFor returns the three live streams for an identity.
func ChannelsFor(id Identity) []string {
	return []string{
		LegacyChannel(id.UserID),
		GlobalPatientChannel(id.PatientID),
		GlobalUIDChannel(id.PatientUID),
	}
}

// PublishChange notifies all three streams for the identity. Publish errors
// are logged only; a missed notification degrades liveness, not correctness.
func (f *ChangeFeed) PublishChange(ctx context.Context, id Identity) {
	for _, channel := range ChannelsFor(id) {
		if err := f.client.Publish(ctx, channel, "changed").Err(); err != nil {
			f.logger.Error("change feed publish failed", "error", err, "channel", channel)
		}
	}
}

// Subscribe opens a subscription covering the given channels.
func (f *ChangeFeed) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return f.client.Subscribe(ctx, channels...)
}

var _ ChangePublisher = (*ChangeFeed)(nil)
