package models

import (
	"reflect"
	"testing"
)

func sampleQuestionnaire() *Questionnaire {
	q0, _ := NewQuestion(0, "¿Tiene discapacidad?", TypeBinary, "Diagnóstico", nil)
	q1, _ := NewQuestion(1, "Describa", TypeOpenText, "Diagnóstico", nil)
	q2, _ := NewQuestion(2, "Tipo de apoyo", TypeDropdown, "Apoyos", []Option{
		{Text: "Empleo protegido", Value: "protegido"},
		{Text: "Empleo abierto", Value: "abierto"},
	})
	return &Questionnaire{
		ID:        "Q1",
		Name:      "Entrevista inicial",
		Questions: []Question{q0, q1, q2},
		Rules: []UnlockRule{
			{SourcePosition: 0, RequiredValue: BinaryYes, TargetPosition: 1},
			{SourcePosition: 0, RequiredValue: BinaryYes, TargetPosition: 2},
		},
	}
}

func TestDefinitionRoundTrip(t *testing.T) {
	in := sampleQuestionnaire()
	data, err := EncodeDefinition(in)
	if err != nil {
		t.Fatalf("EncodeDefinition returned error: %v", err)
	}
	out, err := ParseDefinition(data)
	if err != nil {
		t.Fatalf("ParseDefinition returned error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestParseDefinitionRechecksInvariants(t *testing.T) {
	if _, err := ParseDefinition([]byte(`{"id":"x","questions":[],"rules":[]}`)); err == nil {
		t.Fatalf("expected error for empty definition")
	}

	bad := sampleQuestionnaire()
	bad.Rules = append(bad.Rules, UnlockRule{SourcePosition: 2, RequiredValue: "protegido", TargetPosition: 1})
	data, err := EncodeDefinition(bad)
	if err != nil {
		t.Fatalf("EncodeDefinition returned error: %v", err)
	}
	if _, err := ParseDefinition(data); err == nil {
		t.Fatalf("expected error for backward rule")
	}
}
