package testutil

import "strings"

// HL7ADT is a single ADT^A01 admission message. Segments separate with
// carriage returns, the HL7 wire convention.
const HL7ADT = "MSH|^~\\&|HIS|GENHOSP|INTERLINK|HUB|20240115103000||ADT^A01|MSG00001|P|2.5.1\r" +
	"PID|1||PAT-4821^^^GENHOSP||DOE^JANE||19800304|F\r" +
	"PV1|1|I|MED^0301^01"

// HL7ORU is a single ORU^R01 observation result message.
const HL7ORU = "MSH|^~\\&|LIS|GENHOSP|INTERLINK|HUB|20240115104500||ORU^R01|MSG00002|P|2.5.1\r" +
	"PID|1||PAT-4821^^^GENHOSP||DOE^JANE||19800304|F\r" +
	"OBR|1||ORD-7731|CBC^COMPLETE BLOOD COUNT\r" +
	"OBX|1|NM|WBC^LEUKOCYTES||6.2|10*9/L|4.0-11.0|N|||F"

// HL7Batch is three HL7 messages joined with newlines, the shape a
// record-mode splitter sees when an upstream system ships a file of
// messages in one payload.
const HL7Batch = HL7ADT + "\n" + HL7ORU + "\n" +
	"MSH|^~\\&|HIS|GENHOSP|INTERLINK|HUB|20240115110000||ADT^A03|MSG00003|P|2.5.1\r" +
	"PID|1||PAT-4821^^^GENHOSP||DOE^JANE||19800304|F"

// LabResultsCSV is a headered CSV payload of lab results. Rows for the
// same order are adjacent, so a splitter grouping on orderId yields the
// header row as its own unit followed by one unit per order: two rows,
// three rows, one row.
const LabResultsCSV = `orderId,test,value,unit
ORD-100,NA,140,mmol/L
ORD-100,K,4.1,mmol/L
ORD-101,WBC,6.2,10*9/L
ORD-101,HGB,13.5,g/dL
ORD-101,PLT,250,10*9/L
ORD-102,GLU,98,mg/dL`

// QuotedCSV exercises the tokenizer corners: a delimiter inside quotes
// and a doubled quote token as an escaped literal.
const QuotedCSV = `patientId,name,note
PAT-1,"DOE, JANE","said ""fine"" at intake"
PAT-2,"ROE, RICHARD",stable`

// SentinelBatch is a payload whose records group up to BATCH-END marker
// lines: two units of two records each for a sentinel-mode splitter.
const SentinelBatch = "rec-a1\nrec-a2\nBATCH-END\nrec-b1\nrec-b2\nBATCH-END"

// Records returns a newline-joined payload of the given records, the
// minimal shape for record-mode splitter tests.
func Records(records ...string) string {
	return strings.Join(records, "\n")
}
