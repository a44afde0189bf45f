package dto

// SaveAnswerRequest is the HTTP fallback body for one autosave edit. The
// websocket autosave_request message carries the same fields.
type SaveAnswerRequest struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	AnswerData string `json:"answer_data"`
	Timestamp  string `json:"timestamp"`
}

type GradeAnswerRequest struct {
	QuestionID    uint    `json:"question_id" binding:"required"`
	PointsAwarded float64 `json:"points_awarded"`
	Feedback      string  `json:"feedback"`
}

// ViolationReportRequest mirrors the websocket proctor_alert payload for
// detectors that only speak HTTP.
type ViolationReportRequest struct {
	Category  string `json:"category" binding:"required"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
