/*
Package chat is the session and broadcast engine of the server.

This file defines the wire protocol: the command names clients may send, the packet
shape used for every outbound frame, and the error and rate limit frames.
*/
package chat

import (
	"originchats/internal/app/ratelimit"
	"originchats/internal/pkg/errs"
)

// Command is the cmd discriminator of a client frame.
type Command string

// Session and presence.
const (
	CmdPing Command = "ping"
	CmdAuth Command = "auth"
)

// Messages.
const (
	CmdMessageNew         Command = "message_new"
	CmdMessageEdit        Command = "message_edit"
	CmdMessageDelete      Command = "message_delete"
	CmdMessagePin         Command = "message_pin"
	CmdMessageUnpin       Command = "message_unpin"
	CmdMessageReactAdd    Command = "message_react_add"
	CmdMessageReactRemove Command = "message_react_remove"
	CmdMessagesGet        Command = "messages_get"
	CmdMessageGet         Command = "message_get"
	CmdMessageReplies     Command = "message_replies"
	CmdMessagesPinned     Command = "messages_pinned"
	CmdMessagesSearch     Command = "messages_search"
	CmdMessagesPurge      Command = "messages_purge"
	CmdTyping             Command = "typing"
)

// Channels.
const (
	CmdChannelsGet   Command = "channels_get"
	CmdChannelCreate Command = "channel_create"
	CmdChannelUpdate Command = "channel_update"
	CmdChannelMove   Command = "channel_move"
	CmdChannelDelete Command = "channel_delete"
)

// Roles and users.
const (
	CmdRoleCreate      Command = "role_create"
	CmdRoleUpdate      Command = "role_update"
	CmdRoleDelete      Command = "role_delete"
	CmdRolesList       Command = "roles_list"
	CmdUserRoleAdd     Command = "user_role_add"
	CmdUserRoleRemove  Command = "user_role_remove"
	CmdUserBan         Command = "user_ban"
	CmdUserUnban       Command = "user_unban"
	CmdUserTimeout     Command = "user_timeout"
	CmdUserLeave       Command = "user_leave"
	CmdUsersList       Command = "users_list"
	CmdUsersOnline     Command = "users_online"
	CmdUsersBannedList Command = "users_banned_list"
)

// Voice.
const (
	CmdVoiceJoin   Command = "voice_join"
	CmdVoiceLeave  Command = "voice_leave"
	CmdVoiceMute   Command = "voice_mute"
	CmdVoiceUnmute Command = "voice_unmute"
	CmdVoiceState  Command = "voice_state"
)

// Slash commands.
const (
	CmdSlashRegister Command = "slash_register"
	CmdSlashList     Command = "slash_list"
	CmdSlashCall     Command = "slash_call"
	CmdSlashResponse Command = "slash_response"
)

// Rate limiting and plugins.
const (
	CmdRateLimitStatus Command = "rate_limit_status"
	CmdRateLimitReset  Command = "rate_limit_reset"
	CmdPluginsList     Command = "plugins_list"
	CmdPluginsReload   Command = "plugins_reload"
)

// Server-originated frame names that are not replies to a command.
const (
	cmdHandshake        = "handshake"
	cmdPong             = "pong"
	cmdError            = "error"
	cmdAuthError        = "auth_error"
	cmdAuthSuccess      = "auth_success"
	cmdReady            = "ready"
	cmdRateLimit        = "rate_limit"
	cmdUserConnect      = "user_connect"
	cmdUserDisconnect   = "user_disconnect"
	cmdUserRoles        = "user_roles"
	cmdDisconnect       = "disconnect"
	cmdVoiceUserJoined  = "voice_user_joined"
	cmdVoiceUserLeft    = "voice_user_left"
	cmdVoiceUserUpdated = "voice_user_updated"
	cmdSlashInvoke      = "slash_invoke"
)

const (
	reasonTimeoutSet = "User timeout set"
	reasonBanned     = "You have been banned from this server"
	valUserLeft      = "User left server"
	valAuthSuccess   = "Authentication successful"
)

// heartbeatFrame is the application-level keepalive written by WritePump.
var heartbeatFrame = []byte(`{"cmd":"ping"}`)

// Packet is one outbound JSON frame. Every packet carries a cmd field.
type Packet map[string]any

// errorPacket renders err for the session that sent src. Authentication failures use
// the auth_error frame so clients can return to their login state.
func errorPacket(src Command, err *errs.CustomError) Packet {
	cmd := cmdError
	if err.Kind() == errs.KindAuth {
		cmd = cmdAuthError
	}
	return Packet{
		"cmd":  cmd,
		"val":  err.Message,
		"code": err.Code,
		"src":  src,
	}
}

// rateLimitPacket tells the client how long to back off, in milliseconds.
func rateLimitPacket(d *ratelimit.Denial) Packet {
	return Packet{
		"cmd":    cmdRateLimit,
		"reason": d.Reason,
		"length": d.Milliseconds(),
	}
}

// Handshake is the first frame sent on every connection.
type Handshake struct {
	Server       ServerInfo `json:"server"`
	Limits       Limits     `json:"limits"`
	Version      string     `json:"version"`
	ValidatorKey string     `json:"validator_key"`
}

// ServerInfo describes the server to connecting clients.
type ServerInfo struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Limits advertises content limits enforced by the server.
type Limits struct {
	PostContent int `json:"post_content"`
}
