package bayeux

import (
	"fmt"
	"strconv"
	"strings"
)

func validateVersion(version string) error {
	if len(version) < 1 {
		return ErrNoVersion
	}
	pieces := strings.SplitN(version, ".", 2)
	if _, err := strconv.Atoi(pieces[0]); err != nil {
		return fmt.Errorf("version %q is invalid for Bayeux protocol: %w", version, err)
	}
	return nil
}

// newHandshakeEnvelope builds the /meta/handshake request.
//
// See also: https://docs.cometd.org/current/reference/#_handshake_request
func newHandshakeEnvelope(id, version string, supportedConnectionTypes []string) (Envelope, error) {
	if err := validateVersion(version); err != nil {
		return Envelope{}, err
	}
	if len(supportedConnectionTypes) < 1 {
		return Envelope{}, ErrNoSupportedConnectionTypes
	}
	return Envelope{
		ID:                       id,
		Channel:                  MetaHandshake,
		Version:                  version,
		SupportedConnectionTypes: supportedConnectionTypes,
	}, nil
}

// newConnectEnvelope builds the /meta/connect keepalive request.
//
// See also: https://docs.cometd.org/current/reference/#_bayeux_meta_connect
func newConnectEnvelope(id, clientID, connectionType string) (Envelope, error) {
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	if connectionType == "" {
		return Envelope{}, ErrMissingConnectionType
	}
	return Envelope{
		ID:             id,
		Channel:        MetaConnect,
		ClientID:       clientID,
		ConnectionType: connectionType,
	}, nil
}

// newSubscribeEnvelope builds a /meta/subscribe request.
func newSubscribeEnvelope(id, clientID string, subscription Channel) (Envelope, error) {
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	if !subscription.IsValidName() && !subscription.IsValidPattern() {
		return Envelope{}, newChannelError(string(subscription))
	}
	return Envelope{
		ID:           id,
		Channel:      MetaSubscribe,
		ClientID:     clientID,
		Subscription: subscription,
	}, nil
}

// newUnsubscribeEnvelope builds a /meta/unsubscribe request.
func newUnsubscribeEnvelope(id, clientID string, subscription Channel) (Envelope, error) {
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	if !subscription.IsValidName() && !subscription.IsValidPattern() {
		return Envelope{}, newChannelError(string(subscription))
	}
	return Envelope{
		ID:           id,
		Channel:      MetaUnsubscribe,
		ClientID:     clientID,
		Subscription: subscription,
	}, nil
}

// newDisconnectEnvelope builds a /meta/disconnect request.
func newDisconnectEnvelope(id, clientID string) (Envelope, error) {
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	return Envelope{ID: id, Channel: MetaDisconnect, ClientID: clientID}, nil
}

// newPublishEnvelope builds a publish request on a concrete channel.
func newPublishEnvelope(id, clientID string, channel Channel, data []byte) (Envelope, error) {
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	if !channel.IsValidName() {
		return Envelope{}, newChannelError(string(channel))
	}
	return Envelope{
		ID:       id,
		Channel:  channel,
		ClientID: clientID,
		Data:     data,
	}, nil
}
