package errors

import (
	"errors"
)

var (
	ErrFailedToReadConfig = errors.New("failed to read config")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMQTTHostRequired   = errors.New("mqtt host is required")
	ErrInvalidMQTTPort    = errors.New("mqtt port must be between 1 and 65535")
	ErrSystemIDRequired   = errors.New("system id is required")

	ErrServiceUnknown      = errors.New("object-bus service unknown")
	ErrServiceDisconnected = errors.New("object-bus service disconnected")
	ErrNoReply             = errors.New("object-bus call timed out without reply")
	ErrUnknownObject       = errors.New("object-bus unknown object")
	ErrUnknownMethod       = errors.New("object-bus unknown method")
	ErrIntrospectionFailed = errors.New("object-bus introspection failed")
	ErrMalformedIntrospect = errors.New("object-bus introspection xml malformed")

	ErrUnknownSystemID  = errors.New("request addressed to unknown system id")
	ErrMalformedTopic   = errors.New("malformed request topic")
	ErrMalformedPayload = errors.New("malformed request payload")
	ErrUnknownUID       = errors.New("no uid mapped for requested path")
	ErrWritePropagation = errors.New("failed to propagate write to object bus")

	ErrBrokerConnectFailed   = errors.New("broker connect failed")
	ErrBrokerDisconnected    = errors.New("broker disconnected")
	ErrBrokerPublishFailed   = errors.New("broker publish failed")
	ErrBrokerSubscribeFailed = errors.New("broker subscribe failed")
)

var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
