package proto

// RID room id
type RID string

// UID user id
type UID string

const (
	// client to pilot, requests
	ClientEcho     = "echo"
	ClientRegister = "register"
	ClientJoin     = "join"

	// client to pilot, notifications
	ClientPush             = "push"
	ClientPullRemoteStream = "pullRemoteStream"
	ClientUserDisconnect   = "userDisconnect"
	ClientUserLeave        = "userLeave"
	ClientTextMessage      = "textMessage"
	ClientASRResult        = "asrResult"

	// pilot to client
	ClientOnNewUser = "newUser"
	ClientOnPusher  = "newPusher"

	// pilot to msu
	MsuJoinRoom = "joinRoom"
)

const (
	// ASRBotUID is the synthetic sender for relayed transcription results.
	ASRBotUID = "ai_asr_bot"
	// ASRBotName is the display name of the synthetic sender.
	ASRBotName = "AI_ASR_Bot"
)
