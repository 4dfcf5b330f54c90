package main

import (
	"reflect"
	"testing"

	"bankoffice/models"

	"github.com/shopspring/decimal"
)

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"C1", "C2", "C1", "", "C3", "C2"})
	want := []string{"C1", "C2", "C3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dedupe = %v, want %v", got, want)
	}
	if out := dedupe(nil); len(out) != 0 {
		t.Fatalf("dedupe(nil) = %v", out)
	}
}

func TestTypeFieldsValidFor(t *testing.T) {
	rate := decimal.NewFromFloat(0.035)
	plan := "fixed"
	limit := decimal.NewFromInt(2000)

	saving := typeFields{Rate: &rate, FinancePlan: &plan}
	checking := typeFields{OverdraftLimit: &limit}

	if !saving.validFor(models.AccountTypeSaving) {
		t.Error("saving fields rejected for saving account")
	}
	if saving.validFor(models.AccountTypeChecking) {
		t.Error("saving fields accepted for checking account")
	}
	if !checking.validFor(models.AccountTypeChecking) {
		t.Error("checking fields rejected for checking account")
	}
	if checking.validFor(models.AccountTypeSaving) {
		t.Error("checking fields accepted for saving account")
	}
	if (typeFields{Rate: &rate}).validFor(models.AccountTypeSaving) {
		t.Error("saving account accepted without finance plan")
	}
	if (typeFields{}).validFor(99) {
		t.Error("unknown account type accepted")
	}
}
