package chat

// routes maps every client command to its handler.
var routes = map[Command]route{
	CmdPing: {handle: (*Server).ping, public: true},
	CmdAuth: {handle: (*Server).authenticate, public: true},

	CmdMessageNew:         {handle: (*Server).messageNew},
	CmdMessageEdit:        {handle: (*Server).messageEdit},
	CmdMessageDelete:      {handle: (*Server).messageDelete},
	CmdMessagePin:         {handle: (*Server).messagePin},
	CmdMessageUnpin:       {handle: (*Server).messageUnpin},
	CmdMessageReactAdd:    {handle: (*Server).messageReactAdd},
	CmdMessageReactRemove: {handle: (*Server).messageReactRemove},
	CmdMessagesGet:        {handle: (*Server).messagesGet},
	CmdMessageGet:         {handle: (*Server).messageGet},
	CmdMessageReplies:     {handle: (*Server).messageReplies},
	CmdMessagesPinned:     {handle: (*Server).messagesPinned},
	CmdMessagesSearch:     {handle: (*Server).messagesSearch},
	CmdMessagesPurge:      {handle: (*Server).messagesPurge},
	CmdTyping:             {handle: (*Server).typing},

	CmdChannelsGet:   {handle: (*Server).channelsGet},
	CmdChannelCreate: {handle: (*Server).channelCreate},
	CmdChannelUpdate: {handle: (*Server).channelUpdate},
	CmdChannelMove:   {handle: (*Server).channelMove},
	CmdChannelDelete: {handle: (*Server).channelDelete},

	CmdRoleCreate:      {handle: (*Server).roleCreate},
	CmdRoleUpdate:      {handle: (*Server).roleUpdate},
	CmdRoleDelete:      {handle: (*Server).roleDelete},
	CmdRolesList:       {handle: (*Server).rolesList},
	CmdUserRoleAdd:     {handle: (*Server).userRoleAdd},
	CmdUserRoleRemove:  {handle: (*Server).userRoleRemove},
	CmdUserBan:         {handle: (*Server).userBan},
	CmdUserUnban:       {handle: (*Server).userUnban},
	CmdUserTimeout:     {handle: (*Server).userTimeout},
	CmdUserLeave:       {handle: (*Server).userLeave},
	CmdUsersList:       {handle: (*Server).usersList},
	CmdUsersOnline:     {handle: (*Server).usersOnline},
	CmdUsersBannedList: {handle: (*Server).usersBannedList},

	CmdVoiceJoin:   {handle: (*Server).voiceJoin},
	CmdVoiceLeave:  {handle: (*Server).voiceLeave},
	CmdVoiceMute:   {handle: (*Server).voiceMute},
	CmdVoiceUnmute: {handle: (*Server).voiceUnmute},
	CmdVoiceState:  {handle: (*Server).voiceState},

	CmdSlashRegister: {handle: (*Server).slashRegister},
	CmdSlashList:     {handle: (*Server).slashList},
	CmdSlashCall:     {handle: (*Server).slashCall},
	CmdSlashResponse: {handle: (*Server).slashResponse},

	CmdRateLimitStatus: {handle: (*Server).rateLimitStatus},
	CmdRateLimitReset:  {handle: (*Server).rateLimitReset},
	CmdPluginsList:     {handle: (*Server).pluginsList},
	CmdPluginsReload:   {handle: (*Server).pluginsReload},
}
