package domain

import "errors"

var (
	ErrKicked              = errors.New("kicked from room")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrOwnerNotKickable    = errors.New("room owner cannot be kicked")
	ErrParticipantOffline  = errors.New("participant is offline")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnsupportedMedia    = errors.New("unsupported media url")
	ErrInvalidInput        = errors.New("invalid input")
)

// Error codes carried in the "code" field of API error responses.
const (
	CodeKicked              = "KICKED"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeOwnerNotKickable    = "OWNER_NOT_KICKABLE"
	CodeParticipantOffline  = "PARTICIPANT_OFFLINE"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA"
	CodeValidation          = "VALIDATION"
	CodeInternal            = "INTERNAL"
)

var codeErrors = []struct {
	code string
	err  error
}{
	{CodeKicked, ErrKicked},
	{CodePermissionDenied, ErrPermissionDenied},
	{CodeOwnerNotKickable, ErrOwnerNotKickable},
	{CodeParticipantOffline, ErrParticipantOffline},
	{CodeRoomNotFound, ErrRoomNotFound},
	{CodeParticipantNotFound, ErrParticipantNotFound},
	{CodeUnauthenticated, ErrUnauthenticated},
	{CodeUnsupportedMedia, ErrUnsupportedMedia},
	{CodeValidation, ErrInvalidInput},
}

// ErrorCode returns the API code for err, or CodeInternal.
func ErrorCode(err error) string {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}

	return CodeInternal
}

// ErrorForCode returns the sentinel for an API code, or nil for unknown codes.
func ErrorForCode(code string) error {
	for _, ce := range codeErrors {
		if ce.code == code {
			return ce.err
		}
	}

	return nil
}
