package receipt

import "strings"

// Unit is a unit of measure from the KZ fiscal classifier. The string
// value is the numeric classifier code as it appears on the wire.
type Unit string

const (
	UnitPiece           Unit = "796"
	UnitKilogram        Unit = "116"
	UnitService         Unit = "5114"
	UnitMeter           Unit = "006"
	UnitLiter           Unit = "112"
	UnitLinearMeter     Unit = "021"
	UnitTon             Unit = "168"
	UnitHour            Unit = "356"
	UnitDay             Unit = "359"
	UnitWeek            Unit = "360"
	UnitMonth           Unit = "362"
	UnitMillimeter      Unit = "003"
	UnitCentimeter      Unit = "004"
	UnitDecimeter       Unit = "005"
	UnitUnit            Unit = "642"
	UnitKilometer       Unit = "008"
	UnitHectogram       Unit = "160"
	UnitMilligram       Unit = "161"
	UnitMetricCarat     Unit = "162"
	UnitGram            Unit = "163"
	UnitMicrogram       Unit = "164"
	UnitCubicMillimeter Unit = "110"
	UnitMilliliter      Unit = "111"
	UnitSquareMeter     Unit = "055"
	UnitHectare         Unit = "059"
	UnitSquareKilometer Unit = "061"
	UnitSheet           Unit = "625"
	UnitPack            Unit = "728"
	UnitRoll            Unit = "736"
	UnitPackage         Unit = "778"
	UnitBottle          Unit = "868"
	UnitWork            Unit = "931"
	UnitCubicMeter      Unit = "113"
	UnitUnknown         Unit = "000"
)

// UnitInfo carries the localized full names and abbreviations of a
// unit, as printed on checks in Russian and Kazakh.
type UnitInfo struct {
	NameRus  string
	NameKaz  string
	ShortRus string
	ShortKaz string
}

var unitInfos = map[Unit]UnitInfo{
	UnitPiece:           {"Штука", "Дана", "шт", "дана"},
	UnitKilogram:        {"Килограмм", "Килограмм", "кг", "кг"},
	UnitService:         {"Услуга", "Қызмет", "усл", "қзм"},
	UnitMeter:           {"Метр", "Метр", "м", "м"},
	UnitLiter:           {"Литр", "Литр", "л", "л"},
	UnitLinearMeter:     {"Погонный метр", "Өткел қума метр", "пог.м", "өқм"},
	UnitTon:             {"Тонна", "Тонна", "т", "т"},
	UnitHour:            {"Час", "Сағат", "ч", "сағ"},
	UnitDay:             {"Сутки", "Тәулік", "с", "тлк"},
	UnitWeek:            {"Неделя", "Апта", "нед", "апт"},
	UnitMonth:           {"Месяц", "Ай", "мес", "ай"},
	UnitMillimeter:      {"Миллиметр", "Миллиметр", "мм", "мм"},
	UnitCentimeter:      {"Сантиметр", "Сантиметр", "см", "см"},
	UnitDecimeter:       {"Дециметр", "Дециметр", "дм", "дм"},
	UnitUnit:            {"Единица", "Бірлік", "ед", "брл"},
	UnitKilometer:       {"Километр", "Километр", "км", "км"},
	UnitHectogram:       {"Гектограмм", "Гектограмм", "гг", "гг"},
	UnitMilligram:       {"Миллиграмм", "Миллиграмм", "мг", "мг"},
	UnitMetricCarat:     {"Метрический карат", "Метрлік карат", "мкар", "мкар"},
	UnitGram:            {"Грамм", "Грамм", "гр", "гр"},
	UnitMicrogram:       {"Микрограмм", "Микрограмм", "мкг", "мкг"},
	UnitCubicMillimeter: {"Кубический миллиметр", "Куб миллиметр", "мм3", "мм3"},
	UnitMilliliter:      {"Миллилитр", "Миллилитр", "мл", "мл"},
	UnitSquareMeter:     {"Квадратный метр", "Шаршы метр", "м2", "м2"},
	UnitHectare:         {"Гектар", "Гектар", "га", "га"},
	UnitSquareKilometer: {"Квадратный километр", "Шаршы километр", "км2", "км2"},
	UnitSheet:           {"Лист", "Парақ", "лист", "прқ"},
	UnitPack:            {"Пачка", "Бума", "пач", "бм"},
	UnitRoll:            {"Рулон", "Орам", "рул", "орам"},
	UnitPackage:         {"Упаковка", "Орама", "упак", "орм"},
	UnitBottle:          {"Бутылка", "Бөтелке", "бут", "бөт"},
	UnitWork:            {"Работа", "Жұмыс", "раб", "жұм"},
	UnitCubicMeter:      {"Метр кубический", "Куб метр", "м3", "м3"},
	UnitUnknown:         {"Неизвестно", "Белгісіз", "?", "?"},
}

// Info returns the localized names of the unit.
func (u Unit) Info() UnitInfo {
	if info, ok := unitInfos[u]; ok {
		return info
	}
	return unitInfos[UnitUnknown]
}

// UnitFromString canonicalizes free unit text into a Unit. It accepts
// the numeric classifier code, a localized full name, or a localized
// abbreviation, case-insensitively. It is total: unmatched input maps
// to UnitUnknown, never an error.
func UnitFromString(value string) Unit {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return UnitUnknown
	}
	if _, ok := unitInfos[Unit(normalized)]; ok {
		return Unit(normalized)
	}
	for unit, info := range unitInfos {
		if normalized == strings.ToLower(info.ShortRus) ||
			normalized == strings.ToLower(info.ShortKaz) ||
			normalized == strings.ToLower(info.NameRus) ||
			normalized == strings.ToLower(info.NameKaz) {
			return unit
		}
	}
	return UnitUnknown
}
