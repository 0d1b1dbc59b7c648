package transfer

type ScheduleCreation struct {
	Platform      string `json:"platform" validate:"required"`
	Message       string `json:"message"`
	ScheduledTime string `json:"scheduled_time" validate:"required"`
	HasMedia      bool   `json:"has_media"`
	MediaPath     string `json:"media_path"`
	MediaType     string `json:"media_type"`
	AccountName   string `json:"account_name"`
}
