package forms

import (
	"reportforms/internal/models"
)

func init() {
	fields := []FieldSpec{
		{ID: "nOc", Kind: models.KindText, validate: pattern(`^6C\d{4}$`, "Formato esperado: 6C0000.")},
		{ID: "ocorrencia", Kind: models.KindText, validate: nonEmpty()},
		{ID: "date", Kind: models.KindDate, validate: nonEmpty()},
		{ID: "inicio", Kind: models.KindTime},
		{ID: "termino", Kind: models.KindTime},
	}
	fields = append(fields, textFields(
		"logradouro", "numero", "bairro", "inicioFato", "motivo", "respObra",
		"desviosbc", "desvioscb", "linhasAfetadas", "alerta", "linha",
		"ocSptrans", "contato", "cco", "operacional",
	)...)

	register(&App{
		ID:          Ocorrencias,
		Name:        "Ocorrências",
		CasePrefix:  "6C",
		HasTemplate: true,
		Fields:      fields,
		Required: []Requirement{
			{Field: "nOc", Message: "Insira um numero de ocorrência. Ex: 6C1234"},
			{Field: "ocorrencia", Message: "Insira um tipo de ocorrência. Ex: Instabilidade Sistema SIM..."},
			{Field: "date", Message: "Insira uma data válida para a ocorrência", check: validISODate},
			{Field: "inicio", Message: "Insira o horário no qual a interferência se iniciou"},
			{Field: "logradouro", Message: "Insira um endereço para o ocorrido"},
			{Field: "numero", Message: "Insira um numero para o logradouro"},
			{Field: "bairro", Message: "Insira um bairro para o logradouro"},
			{Field: "inicioFato", Message: "Insira corpo da ocorrência"},
			{Field: "cco", Message: "Insira o nome do responsável do CCO pela elaboração da ocorrência"},
		},
		Defaults: []Default{
			{Field: "linha", Value: NotApplicable},
			{Field: "termino", Value: "-"},
			{Field: "motivo", Value: NotRelevant},
			{Field: "respObra", Value: NotRelevant},
			{Field: "desviosbc", Value: NotApplicable},
			{Field: "desvioscb", Value: NotApplicable},
			{Field: "linhasAfetadas", Value: NotApplicable},
			{Field: "ocSptrans", Value: NotApplicable},
			{Field: "contato", Value: NotApplicable},
			{Field: "alerta", Value: NotApplicable},
			{Field: "operacional", Value: NotApplicable},
		},
		Summary: []Column{
			col("nOc", "Nº OC"),
			col("date", "Data"),
			col("alerta", "Alerta"),
			col("ocorrencia", "Ocorrência"),
			col("logradouro", "Logradouro"),
			col("operacional", "Operacional"),
			col("ocSptrans", "OC SPTrans"),
			col("contato", "Contato"),
			col("termino", "Término"),
			col("cco", "CCO"),
			{ID: "fechamento", Header: "Fechamento", value: func(d *models.Draft) string { return d.Value("cco") }},
		},
		title: func(d *models.Draft) string {
			t := d.CaseNumber + " - " + d.ShortDate
			if l := d.Value("linha"); l != NotApplicable {
				t += " - " + l
			}
			return t + " - " + d.Value("ocorrencia") + " - " + d.Value("logradouro")
		},
	})
}
