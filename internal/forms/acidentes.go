package forms

import (
	"strings"

	"reportforms/internal/models"
)

var acidentesOptional = []string{
	"victimName", "victimDocumentation", "victimSituation", "victimContact",
	"thirdPartyName", "thirdPartyDocumentation", "thirdPartyContact",
	"witnessName", "witnessDocumentation", "witnessContact", "witnessEmail",
	"prat", "pmvt", "pmvtr", "bombeirosSamu", "sptrans", "cet", "policiaCivil",
	"gcm", "bo", "responsavelBo", "pericia", "ocSptrans", "alerta",
	"operacional", "matriculaOp", "moto",
}

var acidentesSensitive = map[string]bool{
	"driverCpf":               true,
	"victimDocumentation":     true,
	"victimContact":           true,
	"thirdPartyDocumentation": true,
	"thirdPartyContact":       true,
	"witnessDocumentation":    true,
	"witnessContact":          true,
	"witnessEmail":            true,
}

func init() {
	fields := []FieldSpec{
		{ID: "nOc", Kind: models.KindText, validate: pattern(`^6A\d{4}$`, "Formato esperado: 6A0000.")},
		{ID: "ocorrencia", Kind: models.KindText, validate: nonEmpty()},
		{ID: "coletivo", Kind: models.KindText, validate: pattern(`^\d{5}( X \d{5})?$`, "Formato esperado: 00000 ou 00000 X 00000.")},
		{ID: "linha", Kind: models.KindText, validate: pattern(`^[A-Za-z0-9]{4}-[A-Za-z0-9]{2}$`, "Formato esperado: 0000-00.")},
		{ID: "date", Kind: models.KindDate, validate: isoDate("Data inválida.")},
		{ID: "time", Kind: models.KindTime, validate: pattern(`^\d{2}:\d{2}$`, "Formato esperado: HH:MM.")},
		{ID: "logradouro", Kind: models.KindText, validate: nonEmpty()},
		{ID: "numero", Kind: models.KindText, validate: pattern(`^(\d+|-)$`, "Use apenas números ou -.")},
		{ID: "bairro", Kind: models.KindText, validate: nonEmpty()},
		text("inicioFato"),
		text("desfecho"),
		text("driverName"),
		text("driverCpf"),
		text("driverSituation"),
		{ID: "cco", Kind: models.KindText, validate: nonEmpty()},
		{ID: "matricula", Kind: models.KindText, validate: nonEmpty()},
	}
	fields = append(fields, textFields(acidentesOptional...)...)
	for i := range fields {
		fields[i].Sensitive = acidentesSensitive[fields[i].ID]
	}

	defaults := make([]Default, len(acidentesOptional))
	for i, id := range acidentesOptional {
		defaults[i] = Default{Field: id, Value: NotApplicable}
	}

	register(&App{
		ID:          Acidentes,
		Name:        "Acidentes",
		CasePrefix:  "6A",
		HasTemplate: true,
		HasGallery:  true,
		HasMail:     true,
		HasSheet:    true,
		Fields:      fields,
		Required: []Requirement{
			{Field: "nOc", Message: "Por favor, preencha o Número da OC."},
			{Field: "ocorrencia", Message: "Preencha a descrição da Ocorrência."},
			{Field: "coletivo", Message: "Preencha o número do Coletivo."},
			{Field: "linha", Message: "Preencha a Linha."},
			{Field: "date", Message: "Selecione uma Data.", check: validISODate},
			{Field: "time", Message: "Preencha a Hora."},
			{Field: "logradouro", Message: "Preencha o Logradouro (Endereço)."},
			{Field: "numero", Message: "Preencha o Número (ou S/N)."},
			{Field: "bairro", Message: "Preencha o Bairro."},
			{Field: "inicioFato", Message: "Preencha a descrição do Início do Fato."},
			{Field: "desfecho", Message: "Preencha o Desfecho."},
			{Field: "driverName", Message: "Preencha o Nome do Motorista."},
			{Field: "driverCpf", Message: "Preencha o CPF do Motorista."},
			{Field: "driverSituation", Message: "Preencha a Situação do Motorista."},
			{Field: "cco", Message: "Preencha o CCO responsável."},
			{Field: "matricula", Message: "Preencha a Matrícula."},
		},
		Defaults: defaults,
		Summary: []Column{
			col("nOc", "Nº OC"),
			col("date", "Data"),
			col("alerta", "Alerta"),
			col("victimName", "Vítima"),
			col("driverName", "Motorista"),
			col("driverCpf", "CPF"),
			col("coletivo", "Coletivo"),
			col("linha", "Linha"),
			col("ocorrencia", "Ocorrência"),
			col("logradouro", "Logradouro"),
			col("operacional", "Operacional"),
			col("bo", "BO"),
			col("ocSptrans", "OC SPTrans"),
			col("sptrans", "SPTrans"),
			col("time", "Hora"),
			col("cco", "CCO"),
			{ID: "fechamento", Header: "Fechamento", value: func(d *models.Draft) string { return d.Value("cco") }},
		},
		title: func(d *models.Draft) string {
			return strings.Join([]string{
				d.CaseNumber, d.ShortDate, d.Value("linha"), d.Value("coletivo"),
				d.Value("ocorrencia"), d.Value("logradouro"),
			}, " - ")
		},
	})
}
