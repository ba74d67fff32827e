package extract

// Labels are the entity classes the clinical prompt asks for.
var Labels = []string{
	"medication", "dosage", "route", "frequency", "duration", "indication", "medication_status",
	"diagnosis", "diagnosis_icd", "diagnosis_status", "diagnosis_onset",
	"procedure", "procedure_date", "procedure_laterality", "procedure_findings",
	"lab_test", "lab_value", "lab_unit", "lab_reference", "lab_interpretation",
	"symptom_sign", "adverse_event_allergy", "allergy_severity",
	"demographic_age", "demographic_sex", "demographic_dob",
}

// ClinicalPrompt describes the extraction task to the model.
const ClinicalPrompt = `Extract clinical entities from the text in order of appearance.
Use exact verbatim text for extractions when possible; do not paraphrase or overlap spans.

Entity types to extract:
- medication: drug name
- dosage: strength/amount (e.g. 10mg, 250 mg)
- route: route of administration (PO, IV, topical, etc.)
- frequency: how often (daily, BID, q4h, etc.)
- duration: length of use (e.g. for one week)
- indication: reason or condition the medication is for
- medication_status: active, discontinued, or as needed

- diagnosis: condition or diagnosis name
- diagnosis_icd: suggested ICD code if inferable (e.g. I10 for hypertension)
- diagnosis_status: active, resolved, history of
- diagnosis_onset: when it started if mentioned

- procedure: procedure or intervention name
- procedure_date: when performed if stated
- procedure_laterality: left, right, bilateral if applicable
- procedure_findings: key findings

- lab_test: name of test
- lab_value: numeric or categorical value
- lab_unit: unit (mg/dL, mmol/L, etc.)
- lab_reference: reference range if given
- lab_interpretation: high, low, normal, abnormal

- symptom_sign: symptom or sign description
- adverse_event_allergy: substance and reaction (e.g. Penicillin - rash)
- allergy_severity: mild, moderate, severe if stated

- demographic_age: age if mentioned
- demographic_sex: sex if mentioned
- demographic_dob: date of birth if mentioned

Use attributes to link related extractions (e.g. medication_group for all fields of one medication).
List entities in order of appearance. Do not invent text that is not in the source.

Respond with a JSON object {"extractions": [...]} where each item has "class", "text"
and "attributes" (a list of {"key", "value"} pairs).`

// responseSchema is the structured output contract for the model.
const responseSchema = `{
  "name": "clinical_extractions",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "extractions": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "class": {"type": "string"},
            "text": {"type": "string"},
            "attributes": {
              "type": "array",
              "items": {
                "type": "object",
                "properties": {
                  "key": {"type": "string"},
                  "value": {"type": "string"}
                },
                "required": ["key", "value"],
                "additionalProperties": false
              }
            }
          },
          "required": ["class", "text", "attributes"],
          "additionalProperties": false
        }
      }
    },
    "required": ["extractions"],
    "additionalProperties": false
  }
}`
