package impparse

import (
	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)
//
// This section defines the Parser Combinator for every token & production of
// the Imp language. Imp has no comment syntax, so there is no comment PC to
// weave in everywhere.
//
// Keywords are plain literal Atoms rather than word-boundary regexes: since
// pidentifier only ever starts with a lowercase letter and every keyword is
// all-uppercase, a keyword Atom can never accidentally swallow the prefix of
// a user identifier. Where one Atom/production is a textual prefix of
// another (">" vs ">=", a bare pidentifier vs an array declaration) the
// longer/more specific alternative is listed first in its OrdChoice.

var grammar = pc.NewAST("imp_program", 0)

// The command productions are mutually recursive (a command contains a
// command list, which contains commands), which Go's package-variable
// dependency analysis rejects as an initialization cycle. They are therefore
// declared here and wired up in init(), with the back references passed as
// *pc.Parser — goparsec dereferences parser pointers at parse time, which is
// its supported mechanism for recursive grammars.
var (
	pProgramAll pc.Parser
	pProcedures pc.Parser
	pProcedure  pc.Parser
	pMain       pc.Parser
	pCommands   pc.Parser
	pCommand    pc.Parser
	pIfCmd      pc.Parser
	pWhileCmd   pc.Parser
	pRepeatCmd  pc.Parser
	pForCmd     pc.Parser
)

func init() {
	// Both the IF-THEN-ENDIF and IF-THEN-ELSE-ENDIF shapes are modeled as a
	// single production with an optional ELSE clause; FromAST tells them
	// apart by whether the "maybe_else" slot matched an "else_part".
	pIfCmd = grammar.And("if_stmt", nil,
		pKwIf, pCondition, pKwThen, &pCommands,
		grammar.Maybe("maybe_else", nil, grammar.And("else_part", nil, pKwElse, &pCommands)),
		pKwEndif,
	)

	pWhileCmd = grammar.And("while_stmt", nil, pKwWhile, pCondition, pKwDo, &pCommands, pKwEndwhile)
	pRepeatCmd = grammar.And("repeat_stmt", nil, pKwRepeat, &pCommands, pKwUntil, pCondition, pSemi)

	// FOR-TO and FOR-DOWNTO also share one production; FromAST inspects
	// which of TO/DOWNTO matched in the "dir" child.
	pForCmd = grammar.And("for_stmt", nil,
		pKwFor, pPIdent, pKwFrom, pValue,
		grammar.OrdChoice("dir", nil, pKwTo, pKwDownto),
		pValue, pKwDo, &pCommands, pKwEndfor,
	)

	pCommand = grammar.OrdChoice("command", nil,
		pAssignCmd, pIfCmd, pWhileCmd, pRepeatCmd, pForCmd, pProcCallCmd, pReadCmd, pWriteCmd,
	)
	// Kleene rather than Many: a procedure or main body may be empty.
	pCommands = grammar.Kleene("commands", nil, pCommand)

	pProcedure = grammar.And("procedure", nil,
		pKwProcedure, pProcHead, pKwIs,
		grammar.Maybe("maybe_decls", nil, pDeclarations),
		pKwBegin, pCommands, pKwEnd,
	)
	pProcedures = grammar.Kleene("procedures", nil, pProcedure)

	pMain = grammar.And("main", nil,
		pKwProgram, pKwIs,
		grammar.Maybe("maybe_decls", nil, pDeclarations),
		pKwBegin, pCommands, pKwEnd,
	)

	// Top level object: a program is zero or more procedure declarations
	// followed by exactly one main block.
	pProgramAll = grammar.And("program_all", nil, pProcedures, pMain)
}

var (
	pProcHead    = grammar.And("proc_head", nil, pPIdent, pLParen, pArgsDecl, pRParen)
	pArgsDecl    = grammar.Many("args_decl", nil, pArgDeclItem, pComma)
	pArgDeclItem = grammar.OrdChoice("arg_decl_item", nil,
		grammar.And("t_arg", nil, pKwT, pPIdent),
		pPIdent,
	)

	pDeclarations = grammar.Many("declarations", nil, pDeclItem, pComma)
	pDeclItem     = grammar.OrdChoice("decl_item", nil, pArrayDecl, pPIdent)
	pArrayDecl    = grammar.And("array_decl", nil, pPIdent, pLBracket, pNum, pColon, pNum, pRBracket)
)

var (
	pAssignCmd = grammar.And("assign_stmt", nil, pIdentifier, pAssignOp, pExpression, pSemi)

	pProcCallCmd = grammar.And("proc_call_stmt", nil, pProcCall, pSemi)
	pProcCall    = grammar.And("proc_call", nil, pPIdent, pLParen, pArgs, pRParen)
	pArgs        = grammar.Many("args", nil, pPIdent, pComma)

	pReadCmd  = grammar.And("read_stmt", nil, pKwRead, pIdentifier, pSemi)
	pWriteCmd = grammar.And("write_stmt", nil, pKwWrite, pValue, pSemi)
)

var (
	pIdentifier  = grammar.OrdChoice("identifier", nil, pArrayAccess, pPIdent)
	pArrayAccess = grammar.And("array_access", nil, pPIdent, pLBracket,
		grammar.OrdChoice("index", nil, pPIdent, pNum), pRBracket,
	)

	pValue = grammar.OrdChoice("value", nil, pIdentifier, pNum)

	pExpression = grammar.And("expression", nil, pValue,
		grammar.Maybe("maybe_rhs", nil, grammar.And("rhs", nil, pExprOp, pValue)),
	)
	pExprOp = grammar.OrdChoice("expr_op", nil,
		pc.Atom("+", "PLUS"), pc.Atom("-", "MINUS"),
		pc.Atom("*", "MUL"), pc.Atom("/", "DIV"), pc.Atom("%", "MOD"),
	)

	pCondition = grammar.And("condition", nil, pValue, pCondOp, pValue)
	pCondOp    = grammar.OrdChoice("cond_op", nil,
		pc.Atom("!=", "NEQ"), pc.Atom(">=", "GTE"), pc.Atom("<=", "LTE"),
		pc.Atom("=", "EQ"), pc.Atom(">", "GT"), pc.Atom("<", "LT"),
	)
)

var (
	// Generic pidentifier parser: lowercase letter followed by lowercase
	// letters, digits or underscores. Keywords are all uppercase so there's
	// no overlap to disambiguate.
	pPIdent = pc.Token(`[a-z][a-z0-9_]*`, "PIDENT")
	pNum    = pc.Int()

	pAssignOp = pc.Atom(":=", "ASSIGN")
	pComma    = pc.Atom(",", "COMMA")
	pColon    = pc.Atom(":", "COLON")
	pSemi     = pc.Atom(";", "SEMI")
	pLParen   = pc.Atom("(", "LPAREN")
	pRParen   = pc.Atom(")", "RPAREN")
	pLBracket = pc.Atom("[", "LBRACKET")
	pRBracket = pc.Atom("]", "RBRACKET")

	pKwProgram   = pc.Atom("PROGRAM", "PROGRAM")
	pKwProcedure = pc.Atom("PROCEDURE", "PROCEDURE")
	pKwIs        = pc.Atom("IS", "IS")
	pKwBegin     = pc.Atom("BEGIN", "T_BEGIN")
	pKwEnd       = pc.Atom("END", "END")
	pKwIf        = pc.Atom("IF", "IF")
	pKwThen      = pc.Atom("THEN", "THEN")
	pKwElse      = pc.Atom("ELSE", "ELSE")
	pKwEndif     = pc.Atom("ENDIF", "ENDIF")
	pKwWhile     = pc.Atom("WHILE", "WHILE")
	pKwDo        = pc.Atom("DO", "DO")
	pKwEndwhile  = pc.Atom("ENDWHILE", "ENDWHILE")
	pKwRepeat    = pc.Atom("REPEAT", "REPEAT")
	pKwUntil     = pc.Atom("UNTIL", "UNTIL")
	pKwFor       = pc.Atom("FOR", "FOR")
	pKwEndfor    = pc.Atom("ENDFOR", "ENDFOR")
	pKwFrom      = pc.Atom("FROM", "FROM")
	pKwTo        = pc.Atom("TO", "TO")
	pKwDownto    = pc.Atom("DOWNTO", "DOWNTO")
	pKwRead      = pc.Atom("READ", "READ")
	pKwWrite     = pc.Atom("WRITE", "WRITE")
	pKwT         = pc.Atom("T", "T")
)
