package diagnosis

// diagnosisMessage produces the human-readable advice string for a result.
// The output of this service is a screening aid, so every message defers to a
// professional examination.
func diagnosisMessage(label string, confidence float32) string {
	highConfidence := confidence > 0.8
	switch label {
	case "healthy":
		if highConfidence {
			return "The dental X-ray appears healthy with no signs of cavities or gum disease."
		}
		return "The dental X-ray appears mostly healthy, but consider a professional examination."
	case "cavity":
		if highConfidence {
			return "Potential cavity detected. Please consult with a dentist for proper diagnosis and treatment."
		}
		return "Possible cavity detected. Recommend professional dental examination for confirmation."
	case "gum_disease":
		if highConfidence {
			return "Signs of gum disease detected. Please schedule an appointment with your dentist."
		}
		return "Possible gum disease indicators. Recommend professional dental consultation."
	}
	return "Analysis complete. Please consult with a dental professional for proper diagnosis."
}
