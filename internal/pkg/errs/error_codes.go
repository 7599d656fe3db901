/*
Package errs provides custom error types and application-level error code constants.

These codes identify protocol, domain, session and internal failures both inside the
server and in the error frames sent to clients.
*/
package errs

// 1xxx: Protocol and Validation Errors
const (
	// ErrInvalidFormat indicates the inbound frame is not a JSON object with a cmd field.
	ErrInvalidFormat = 1001

	// ErrUnknownCommand indicates the cmd discriminator names no known command.
	ErrUnknownCommand = 1002

	// ErrMissingField indicates a required payload field was absent or empty.
	ErrMissingField = 1003

	// ErrInvalidField indicates a payload field had the wrong type or an out-of-range value.
	ErrInvalidField = 1004

	// ErrContentEmpty indicates message content was blank after trimming.
	ErrContentEmpty = 1005

	// ErrContentTooLong indicates message content exceeded the configured limit.
	ErrContentTooLong = 1006

	// ErrInvalidEmoji indicates a reaction used a symbol outside the emoji table.
	ErrInvalidEmoji = 1007

	// ErrSlashSchemaInvalid indicates a slash command registration failed schema checks.
	ErrSlashSchemaInvalid = 1008

	// ErrSlashArgsInvalid indicates slash command arguments failed validation.
	ErrSlashArgsInvalid = 1009

	// ErrAlreadyAuthenticated indicates auth was sent on an authenticated session.
	ErrAlreadyAuthenticated = 1010

	// ErrRateLimitExceeded indicates a connection attempt exceeded the per-IP limit.
	ErrRateLimitExceeded = 1011
)

// 2xxx: Domain State Errors
const (
	// ErrChannelNotFound indicates the named channel does not exist.
	ErrChannelNotFound = 2101

	// ErrChannelExists indicates a channel with that name already exists.
	ErrChannelExists = 2102

	// ErrChannelNoMessages indicates the channel type keeps no message log.
	ErrChannelNoMessages = 2103

	// ErrChannelNotVoice indicates a voice operation targeted a non-voice channel.
	ErrChannelNotVoice = 2104

	// ErrMessageNotFound indicates the message id does not exist in the channel.
	ErrMessageNotFound = 2201

	// ErrReplyTargetNotFound indicates reply_to references a missing message.
	ErrReplyTargetNotFound = 2202

	// ErrReactionNotFound indicates the (emoji, user) reaction pair is absent.
	ErrReactionNotFound = 2203

	// ErrPurgeTooMany indicates a purge asked for more messages than the channel holds.
	ErrPurgeTooMany = 2204

	// ErrUserNotFound indicates no user matches the given username or id.
	ErrUserNotFound = 2301

	// ErrUsernameTaken indicates another user already holds the username.
	ErrUsernameTaken = 2302

	// ErrRoleNotFound indicates the named role does not exist.
	ErrRoleNotFound = 2401

	// ErrRoleExists indicates a role with that name already exists.
	ErrRoleExists = 2402

	// ErrRoleReserved indicates a reserved role cannot be deleted.
	ErrRoleReserved = 2403

	// ErrLastRole indicates the operation would leave a user with no roles.
	ErrLastRole = 2404

	// ErrNotInVoice indicates the user holds no voice membership.
	ErrNotInVoice = 2501

	// ErrSlashNotFound indicates the slash command is not registered.
	ErrSlashNotFound = 2601

	// ErrSlashTaken indicates another user already registered the slash command name.
	ErrSlashTaken = 2602

	// ErrInvocationNotFound indicates the slash invocation is unknown or expired.
	ErrInvocationNotFound = 2603

	// ErrPluginNotFound indicates no loaded plugin has that name.
	ErrPluginNotFound = 2701
)

// 3xxx: Session and Security Errors
const (
	// ErrAuthRequired indicates the session must authenticate first.
	ErrAuthRequired = 3001

	// ErrAuthInvalid indicates the identity validator rejected the token.
	ErrAuthInvalid = 3002

	// ErrBanned indicates the authenticating user is banned.
	ErrBanned = 3003

	// ErrAuthUnavailable indicates the identity validator could not be reached.
	ErrAuthUnavailable = 3004

	// ErrPermissionDenied indicates the role set fails the channel permission for an action.
	ErrPermissionDenied = 3101

	// ErrOwnerRequired indicates the command is restricted to the owner role.
	ErrOwnerRequired = 3102

	// ErrEditOthersUnsupported indicates an attempt to edit another user's message.
	ErrEditOthersUnsupported = 3103

	// ErrSelfOrOwnerRequired indicates the command targets someone else without the owner role.
	ErrSelfOrOwnerRequired = 3104

	// ErrSlashRoleDenied indicates the caller's roles fail the command's white/blacklist.
	ErrSlashRoleDenied = 3105

	// ErrNotCommandOwner indicates a slash response came from a user that does not own the command.
	ErrNotCommandOwner = 3106
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified server error.
	ErrUnknown = 5000

	// ErrRateLimiterDisabled indicates a rate limit operation while the limiter is disabled.
	ErrRateLimiterDisabled = 5001

	// ErrHandlerOffline indicates no session of the slash command owner is connected.
	ErrHandlerOffline = 5002
)
