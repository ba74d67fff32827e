package extract

// Attribute links related extractions (e.g. medication_group).
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Item is one extraction as the model returns it.
type Item struct {
	Class      string      `json:"class"`
	Text       string      `json:"text"`
	Attributes []Attribute `json:"attributes"`
}

// Example is a few-shot demonstration: a note and its expected extractions.
type Example struct {
	Text  string
	Items []Item
}

type response struct {
	Extractions []Item `json:"extractions"`
}

func item(class, text string, attrs ...string) Item {
	it := Item{Class: class, Text: text, Attributes: []Attribute{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		it.Attributes = append(it.Attributes, Attribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return it
}

func medItem(class, text, group string) Item {
	return item(class, text, "medication_group", group)
}

func labItem(class, text, group string) Item {
	return item(class, text, "lab_group", group)
}

// Examples returns the few-shot demonstrations sent with every request.
func Examples() []Example {
	return []Example{
		{
			Text: "Patient was given 250 mg IV Cefazolin TID for one week.",
			Items: []Item{
				medItem("dosage", "250 mg", "Cefazolin"),
				medItem("route", "IV", "Cefazolin"),
				medItem("medication", "Cefazolin", "Cefazolin"),
				medItem("frequency", "TID", "Cefazolin"),
				medItem("duration", "for one week", "Cefazolin"),
			},
		},
		{
			Text: "DISCHARGE SUMMARY\n" +
				"Patient is a 67 yo M with HTN and DM2. " +
				"He was given 250 mg IV Cefazolin TID for one week for cellulitis. " +
				"Home medications: Lisinopril 10 mg PO daily for hypertension, Metformin 500 mg PO BID for diabetes. " +
				"Allergies: Penicillin - rash. " +
				"Discharge diagnosis: Cellulitis left lower leg, Hypertension, Type 2 diabetes.",
			Items: []Item{
				item("demographic_age", "67 yo"),
				item("demographic_sex", "M"),
				medItem("medication", "Cefazolin", "Cefazolin"),
				medItem("dosage", "250 mg", "Cefazolin"),
				medItem("route", "IV", "Cefazolin"),
				medItem("frequency", "TID", "Cefazolin"),
				medItem("duration", "for one week", "Cefazolin"),
				medItem("indication", "cellulitis", "Cefazolin"),
				medItem("medication", "Lisinopril", "Lisinopril"),
				medItem("dosage", "10 mg", "Lisinopril"),
				medItem("route", "PO", "Lisinopril"),
				medItem("frequency", "daily", "Lisinopril"),
				medItem("indication", "hypertension", "Lisinopril"),
				medItem("medication", "Metformin", "Metformin"),
				medItem("dosage", "500 mg", "Metformin"),
				medItem("route", "PO", "Metformin"),
				medItem("frequency", "BID", "Metformin"),
				medItem("indication", "diabetes", "Metformin"),
				item("adverse_event_allergy", "Penicillin - rash"),
				item("diagnosis", "Cellulitis left lower leg"),
				item("diagnosis", "Hypertension"),
				item("diagnosis", "Type 2 diabetes"),
			},
		},
		{
			Text: "Labs: WBC 12.2 K/uL (ref 4.5-11), Hgb 10.1 g/dL (ref 12-16), low. " +
				"Creatinine 1.4 mg/dL (ref 0.7-1.3), elevated. " +
				"Rapid flu: negative.",
			Items: []Item{
				labItem("lab_test", "WBC", "WBC"),
				labItem("lab_value", "12.2 K/uL", "WBC"),
				labItem("lab_reference", "ref 4.5-11", "WBC"),
				labItem("lab_test", "Hgb", "Hgb"),
				labItem("lab_value", "10.1 g/dL", "Hgb"),
				labItem("lab_reference", "ref 12-16", "Hgb"),
				labItem("lab_interpretation", "low", "Hgb"),
				labItem("lab_test", "Creatinine", "Creatinine"),
				labItem("lab_value", "1.4 mg/dL", "Creatinine"),
				labItem("lab_reference", "ref 0.7-1.3", "Creatinine"),
				labItem("lab_interpretation", "elevated", "Creatinine"),
				item("lab_test", "Rapid flu"),
				item("lab_value", "negative"),
			},
		},
		{
			Text: "CT chest with contrast performed 01/15/2025. " +
				"Findings: 2 cm nodule in the right upper lobe, no left-sided abnormalities. " +
				"Echo: EF 55%, mild MR.",
			Items: []Item{
				item("procedure", "CT chest with contrast"),
				item("procedure_date", "01/15/2025"),
				item("procedure_findings", "2 cm nodule in the right upper lobe", "laterality", "right"),
				item("procedure_findings", "no left-sided abnormalities", "laterality", "left"),
				item("procedure", "Echo"),
				item("procedure_findings", "EF 55%"),
				item("procedure_findings", "mild MR"),
			},
		},
		{
			Text: "Patient presents with 3 days of fever, cough, and shortness of breath. " +
				"Denies chest pain. No known drug allergies.",
			Items: []Item{
				item("symptom_sign", "fever"),
				item("symptom_sign", "cough"),
				item("symptom_sign", "shortness of breath"),
				item("symptom_sign", "Denies chest pain", "negated", "true"),
			},
		},
		{
			Text: "CHEST X-RAY: PA and lateral views. " +
				"Heart size normal. Lungs clear bilaterally. " +
				"No pleural effusion or pneumothorax. " +
				"Impression: No acute cardiopulmonary process.",
			Items: []Item{
				item("procedure", "CHEST X-RAY"),
				item("procedure_findings", "Heart size normal"),
				item("procedure_findings", "Lungs clear bilaterally"),
				item("procedure_findings", "No pleural effusion or pneumothorax"),
				item("diagnosis", "No acute cardiopulmonary process"),
			},
		},
	}
}
