/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template. Templates containing a
format verb are filled from the details passed to NewError.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: Protocol and Validation Errors
	ErrInvalidFormat:        {Code: ErrInvalidFormat, Message: "Invalid message format: %s", Status: http.StatusBadRequest},
	ErrUnknownCommand:       {Code: ErrUnknownCommand, Message: "Unknown command: %s", Status: http.StatusBadRequest},
	ErrMissingField:         {Code: ErrMissingField, Message: "Missing required field: %s", Status: http.StatusBadRequest},
	ErrInvalidField:         {Code: ErrInvalidField, Message: "Invalid value for field: %s", Status: http.StatusBadRequest},
	ErrContentEmpty:         {Code: ErrContentEmpty, Message: "Message content cannot be empty", Status: http.StatusBadRequest},
	ErrContentTooLong:       {Code: ErrContentTooLong, Message: "Message too long. Maximum length is %d characters", Status: http.StatusBadRequest},
	ErrInvalidEmoji:         {Code: ErrInvalidEmoji, Message: "Invalid emoji: %s", Status: http.StatusBadRequest},
	ErrSlashSchemaInvalid:   {Code: ErrSlashSchemaInvalid, Message: "Invalid slash command: %s", Status: http.StatusBadRequest},
	ErrSlashArgsInvalid:     {Code: ErrSlashArgsInvalid, Message: "Invalid slash command arguments: %s", Status: http.StatusBadRequest},
	ErrAlreadyAuthenticated: {Code: ErrAlreadyAuthenticated, Message: "Already authenticated", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Domain State Errors
	ErrChannelNotFound:     {Code: ErrChannelNotFound, Message: "Channel not found: %s", Status: http.StatusNotFound},
	ErrChannelExists:       {Code: ErrChannelExists, Message: "Channel already exists: %s", Status: http.StatusConflict},
	ErrChannelNoMessages:   {Code: ErrChannelNoMessages, Message: "Channel %s does not hold messages", Status: http.StatusBadRequest},
	ErrChannelNotVoice:     {Code: ErrChannelNotVoice, Message: "Channel %s is not a voice channel", Status: http.StatusBadRequest},
	ErrMessageNotFound:     {Code: ErrMessageNotFound, Message: "Message not found", Status: http.StatusNotFound},
	ErrReplyTargetNotFound: {Code: ErrReplyTargetNotFound, Message: "The message you're trying to reply to was not found", Status: http.StatusNotFound},
	ErrReactionNotFound:    {Code: ErrReactionNotFound, Message: "Reaction not found", Status: http.StatusNotFound},
	ErrPurgeTooMany:        {Code: ErrPurgeTooMany, Message: "Channel holds fewer than %d messages", Status: http.StatusBadRequest},
	ErrUserNotFound:        {Code: ErrUserNotFound, Message: "User not found: %s", Status: http.StatusNotFound},
	ErrUsernameTaken:       {Code: ErrUsernameTaken, Message: "Username is already taken: %s", Status: http.StatusConflict},
	ErrRoleNotFound:        {Code: ErrRoleNotFound, Message: "Role not found: %s", Status: http.StatusNotFound},
	ErrRoleExists:          {Code: ErrRoleExists, Message: "Role already exists: %s", Status: http.StatusConflict},
	ErrRoleReserved:        {Code: ErrRoleReserved, Message: "Role %s is reserved", Status: http.StatusConflict},
	ErrLastRole:            {Code: ErrLastRole, Message: "A user must keep at least one role", Status: http.StatusConflict},
	ErrNotInVoice:          {Code: ErrNotInVoice, Message: "You are not in a voice channel", Status: http.StatusConflict},
	ErrSlashNotFound:       {Code: ErrSlashNotFound, Message: "Slash command not found: %s", Status: http.StatusNotFound},
	ErrSlashTaken:          {Code: ErrSlashTaken, Message: "Slash command %s is registered by another user", Status: http.StatusConflict},
	ErrInvocationNotFound:  {Code: ErrInvocationNotFound, Message: "Slash invocation not found or expired", Status: http.StatusNotFound},
	ErrPluginNotFound:      {Code: ErrPluginNotFound, Message: "Failed to reload plugin '%s'", Status: http.StatusNotFound},

	// 3xxx: Session and Security Errors
	ErrAuthRequired:          {Code: ErrAuthRequired, Message: "Authentication required", Status: http.StatusUnauthorized},
	ErrAuthInvalid:           {Code: ErrAuthInvalid, Message: "Invalid authentication", Status: http.StatusUnauthorized},
	ErrBanned:                {Code: ErrBanned, Message: "Access denied: You are banned from this server", Status: http.StatusForbidden},
	ErrAuthUnavailable:       {Code: ErrAuthUnavailable, Message: "Authentication service unavailable", Status: http.StatusServiceUnavailable},
	ErrPermissionDenied:      {Code: ErrPermissionDenied, Message: "You do not have permission to %s", Status: http.StatusForbidden},
	ErrOwnerRequired:         {Code: ErrOwnerRequired, Message: "Access denied: owner role required", Status: http.StatusForbidden},
	ErrEditOthersUnsupported: {Code: ErrEditOthersUnsupported, Message: "You do not have permission to edit this message", Status: http.StatusForbidden},
	ErrSelfOrOwnerRequired:   {Code: ErrSelfOrOwnerRequired, Message: "Access denied: can only target yourself", Status: http.StatusForbidden},
	ErrSlashRoleDenied:       {Code: ErrSlashRoleDenied, Message: "You are not allowed to use /%s", Status: http.StatusForbidden},
	ErrNotCommandOwner:       {Code: ErrNotCommandOwner, Message: "Only the command owner can respond to this invocation", Status: http.StatusForbidden},

	// 5xxx: Internal System Errors
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrRateLimiterDisabled: {Code: ErrRateLimiterDisabled, Message: "Rate limiter not available or disabled", Status: http.StatusServiceUnavailable},
	ErrHandlerOffline:      {Code: ErrHandlerOffline, Message: "The handler for /%s is offline", Status: http.StatusServiceUnavailable},
}
