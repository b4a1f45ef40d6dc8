package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/edulane/scoring-review-service/internal/utils"
	"github.com/xuri/excelize/v2"
)

// ImportService turns teacher-supplied spreadsheet data into a validated
// QuestionDocument. A parse either yields a complete document or a single
// *ParseError; a partially populated document is never returned.
type ImportService interface {
	ParseFile(r io.Reader, filename string) (*models.QuestionDocument, error)
	ParseCSV(r io.Reader) (*models.QuestionDocument, error)
	ParseExcel(r io.Reader) (*models.QuestionDocument, error)
}

type importService struct {
	logger utils.Logger
}

func NewImportService(logger utils.Logger) ImportService {
	return &importService{
		logger: logger,
	}
}

// Required columns. Question, assignment and model answer are read from the
// first data row; repeats on later rows are ignored.
var requiredColumns = []string{
	"question",
	"model_part1_prefix", "model_part1_completion",
	"model_part2_prefix", "model_part2_completion",
	"student_name",
	"part1_prefix", "part1_completion",
	"part2_prefix", "part2_completion",
}

func (s *importService) ParseFile(r io.Reader, filename string) (*models.QuestionDocument, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv":
		return s.ParseCSV(r)
	case ".xlsx", ".xls":
		return s.ParseExcel(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileFormat, ext)
	}
}

func (s *importService) ParseCSV(r io.Reader) (*models.QuestionDocument, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	// Rows may omit trailing optional columns
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, NewMalformedInputError(0, "", fmt.Sprintf("not a valid CSV file: %v", err), "")
	}

	doc, err := s.buildDocument(records)
	if err != nil {
		return nil, err
	}

	s.logger.Info("CSV import parsed",
		"data_rows", len(records)-1,
		"students", len(doc.StudentResponses))

	return doc, nil
}

func (s *importService) ParseExcel(r io.Reader) (*models.QuestionDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewMalformedInputError(0, "", fmt.Sprintf("not a valid Excel file: %v", err), "")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewMalformedInputError(0, "", "Excel file has no sheets", "")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, NewMalformedInputError(0, "", fmt.Sprintf("failed to read Excel rows: %v", err), "")
	}

	doc, err := s.buildDocument(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Excel import parsed",
		"sheet", sheets[0],
		"data_rows", len(rows)-1,
		"students", len(doc.StudentResponses))

	return doc, nil
}

// buildDocument maps header-addressed rows onto a QuestionDocument. Row
// numbers in errors are 1-based including the header row, matching the view
// in a spreadsheet tool.
func (s *importService) buildDocument(records [][]string) (*models.QuestionDocument, error) {
	if len(records) < 2 {
		return nil, NewMalformedInputError(0, "", "file must have a header row and at least one data row", "")
	}

	headers := records[0]
	headerMap := make(map[string]int)
	for i, header := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}

	for _, col := range requiredColumns {
		if _, exists := headerMap[col]; !exists {
			return nil, NewMalformedInputError(1, col, "missing required column", col)
		}
	}

	// Text fields keep their whitespace: completions continue the prefix
	// sentence and usually start with a space.
	getColumn := func(record []string, name string) string {
		if index, exists := headerMap[name]; exists && index < len(record) {
			return record[index]
		}
		return ""
	}
	isBlank := func(value string) bool {
		return strings.TrimSpace(value) == ""
	}
	_, hasIDColumn := headerMap["student_id"]
	_, hasAITotal := headerMap["ai_total"]

	first := records[1]
	question := strings.TrimSpace(getColumn(first, "question"))
	if question == "" {
		return nil, NewMalformedInputError(2, "question", "required field is empty", "")
	}

	modelAnswer := models.TwoPartAnswer{
		Part1: models.AnswerPart{
			Prefix:     getColumn(first, "model_part1_prefix"),
			Completion: getColumn(first, "model_part1_completion"),
		},
		Part2: models.AnswerPart{
			Prefix:     getColumn(first, "model_part2_prefix"),
			Completion: getColumn(first, "model_part2_completion"),
		},
	}
	if isBlank(modelAnswer.Part1.Completion) {
		return nil, NewMalformedInputError(2, "model_part1_completion", "required field is empty", "")
	}
	if isBlank(modelAnswer.Part2.Completion) {
		return nil, NewMalformedInputError(2, "model_part2_completion", "required field is empty", "")
	}

	doc := &models.QuestionDocument{
		Question:       question,
		AssignmentName: strings.TrimSpace(getColumn(first, "assignment_name")),
		ModelAnswer:    modelAnswer,
	}

	seenIDs := make(map[int]int) // id -> row number
	for rowIndex, record := range records[1:] {
		rowNum := rowIndex + 2

		name := strings.TrimSpace(getColumn(record, "student_name"))
		if name == "" {
			return nil, NewMalformedInputError(rowNum, "student_name", "required field is empty", "")
		}

		response := models.TwoPartAnswer{
			Part1: models.AnswerPart{
				Prefix:     getColumn(record, "part1_prefix"),
				Completion: getColumn(record, "part1_completion"),
			},
			Part2: models.AnswerPart{
				Prefix:     getColumn(record, "part2_prefix"),
				Completion: getColumn(record, "part2_completion"),
			},
		}
		if isBlank(response.Part1.Completion) {
			return nil, NewMalformedInputError(rowNum, "part1_completion", "required field is empty", "")
		}
		if isBlank(response.Part2.Completion) {
			return nil, NewMalformedInputError(rowNum, "part2_completion", "required field is empty", "")
		}

		// Ids are synthetic unless the sheet carries its own student_id column
		id := rowIndex + 1
		if hasIDColumn {
			idStr := strings.TrimSpace(getColumn(record, "student_id"))
			if idStr == "" {
				return nil, NewMalformedInputError(rowNum, "student_id", "required field is empty", "")
			}
			parsed, err := strconv.Atoi(idStr)
			if err != nil {
				return nil, NewTypeCoercionError(rowNum, "student_id", idStr)
			}
			id = parsed
		}
		if prevRow, dup := seenIDs[id]; dup {
			return nil, NewMalformedInputError(rowNum, "student_id",
				fmt.Sprintf("duplicate id, already used on row %d", prevRow), strconv.Itoa(id))
		}
		seenIDs[id] = rowNum

		aiPart1, err := parseScoreColumn(record, "ai_part1", rowNum, getColumn)
		if err != nil {
			return nil, err
		}
		aiPart2, err := parseScoreColumn(record, "ai_part2", rowNum, getColumn)
		if err != nil {
			return nil, err
		}
		aiTotal := aiPart1 + aiPart2
		if hasAITotal {
			if aiTotal, err = parseScoreColumn(record, "ai_total", rowNum, getColumn); err != nil {
				return nil, err
			}
		}

		confidence := 0
		if confStr := strings.TrimSpace(getColumn(record, "confidence")); confStr != "" {
			conf, err := parseNumber(confStr)
			if err != nil {
				return nil, NewTypeCoercionError(rowNum, "confidence", confStr)
			}
			confidence = int(math.Round(conf))
		}

		importance1, err := parseImportanceTokens(getColumn(record, "importance_part1"), rowNum, "importance_part1")
		if err != nil {
			return nil, err
		}
		importance2, err := parseImportanceTokens(getColumn(record, "importance_part2"), rowNum, "importance_part2")
		if err != nil {
			return nil, err
		}

		doc.StudentResponses = append(doc.StudentResponses, models.StudentResponse{
			ID:         id,
			Name:       name,
			Response:   response,
			AIScore:    models.Score{Part1: aiPart1, Part2: aiPart2, Total: aiTotal},
			Confidence: confidence,
			FeatureImportance: models.FeatureImportance{
				Part1: importance1,
				Part2: importance2,
			},
			// Similar-response exemplars have no spreadsheet representation
			SimilarResponses: nil,
		})
	}

	return doc, nil
}

// parseScoreColumn reads an optional numeric column; absent or empty means 0.
func parseScoreColumn(record []string, column string, rowNum int, getColumn func([]string, string) string) (float64, error) {
	value := strings.TrimSpace(getColumn(record, column))
	if value == "" {
		return 0, nil
	}
	score, err := parseNumber(value)
	if err != nil {
		return 0, NewTypeCoercionError(rowNum, column, value)
	}
	return score, nil
}

// parseNumber accepts both "1.5" and the decimal-comma form "1,5" that
// European spreadsheet exports produce.
func parseNumber(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if strings.Count(value, ",") == 1 && !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	return strconv.ParseFloat(value, 64)
}

// parseImportanceTokens parses "word:level|word:level" lists. Words may
// contain spaces; levels must be low, medium or high.
func parseImportanceTokens(value string, rowNum int, colName string) ([]models.WordImportance, error) {
	if value == "" {
		return nil, nil
	}

	var marks []models.WordImportance
	for _, token := range strings.Split(value, "|") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		sep := strings.LastIndex(token, ":")
		if sep <= 0 {
			return nil, NewMalformedInputError(rowNum, colName, "expected word:level tokens separated by |", token)
		}

		word := strings.TrimSpace(token[:sep])
		level := models.ImportanceLevel(strings.ToLower(strings.TrimSpace(token[sep+1:])))
		if !level.Valid() {
			return nil, NewMalformedInputError(rowNum, colName, "importance level must be low, medium or high", token)
		}

		marks = append(marks, models.WordImportance{Word: word, Importance: level})
	}

	return marks, nil
}
