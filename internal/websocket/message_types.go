package websocket

// Типы событий, рассылаемых подключенным клиентам сессии.
// События — подсказки "состояние изменилось, перечитай снапшот";
// клиент никогда не реконструирует состояние из истории событий.
const (
	EventPlayerJoined     = "player:joined"
	EventSessionStarted   = "session:started"
	EventQuestionAdvanced = "question:advanced"
	EventAnswerRecorded   = "answer:recorded"
	EventSessionEnded     = "session:ended"
)

// Event — конверт исходящего события
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
