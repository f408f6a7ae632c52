// Package parser converts comma-delimited text files into rows.
//
// A conversion is a three stage pipeline:
//
//  1. [LineSource] reads the input lazily and yields one line at a time.
//     "\n", "\r\n" and a lone "\r" all end a line.
//  2. [Tokenize] splits a line on literal commas and trims each field.
//  3. The resolver either returns the tokenized rows unchanged
//     ([ConvertRaw]) or runs every row through a [Schema] and records a
//     [Result] per row ([ConvertValidated]).
//
// # Row Results
//
// In validated mode every input line produces exactly one [Result]. A row
// the schema accepts carries the typed value; a rejected row carries a
// [*SchemaError] holding the zero-based row index, the tokenized fields and
// the issues reported by the schema. Rejections never stop the conversion.
//
//	results, err := parser.ConvertValidated(ctx, "people.csv", schema, parser.Options{})
//	if err != nil {
//	    return err // file could not be opened or read
//	}
//	for _, r := range results {
//	    r.Match(
//	        func(p Person) { fmt.Println(p.Name) },
//	        func(e *parser.SchemaError) { fmt.Println(e) },
//	    )
//	}
//
// # Limitations
//
// The tokenizer is not quote-aware. A line such as
//
//	Bob,"i, love, cs32!"
//
// yields four fields. Header rows are not treated specially either: the
// first line is row 0 like any other.
package parser
