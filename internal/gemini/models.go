package gemini

// DefaultModel модель по умолчанию для generateContent.
const DefaultModel = "gemini-1.5-flash"

// AvailableModels известные модели generateContent.
var AvailableModels = []ModelInfo{
	{
		ID:          "gemini-1.5-flash",
		Name:        "Gemini 1.5 Flash",
		Description: "Быстрая модель, используется по умолчанию",
	},
	{
		ID:          "gemini-1.5-pro",
		Name:        "Gemini 1.5 Pro",
		Description: "Более качественные ответы, медленнее",
	},
	{
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
	},
}

type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Known       bool   `json:"known"`
}

// GetModelByID возвращает информацию о модели или nil.
func GetModelByID(modelID string) *ModelInfo {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return &m
		}
	}
	return nil
}

// Describe описание модели для диагностики. Неизвестная модель
// описывается своим ID и Known=false; запросы к ней всё равно уходят.
func Describe(modelID string) ModelInfo {
	if info := GetModelByID(modelID); info != nil {
		out := *info
		out.Known = true
		return out
	}
	return ModelInfo{ID: modelID, Name: modelID}
}

// GetModelName короткое название модели; для неизвестной модели её ID.
func GetModelName(modelID string) string {
	return Describe(modelID).Name
}
